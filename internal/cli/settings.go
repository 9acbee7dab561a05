package cli

import (
	"fmt"
	"strings"

	"github.com/imkarma/flowctl/internal/store"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change stored settings",
	Long:  "Settings live in .flowctl/settings.db. Keys: " + strings.Join(store.Keys, ", ") + ".",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a setting (an empty auth_token removes it)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSettingsSet,
}

var settingsUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Remove a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsUnset,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsUnsetCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	all, err := s.All()
	if err != nil {
		return err
	}
	if flagJSON {
		if v, ok := all[store.KeyAuthToken]; ok {
			all[store.KeyAuthToken] = maskToken(v)
		}
		return printJSON(cmd.OutOrStdout(), all)
	}

	out := cmd.OutOrStdout()
	for _, k := range store.Keys {
		v, ok := all[k]
		switch {
		case !ok:
			v = colorDim.Sprint("(unset)")
		case k == store.KeyAuthToken:
			v = maskToken(v)
		}
		fmt.Fprintf(out, "  %-12s %s\n", k+":", v)
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	key, value := args[0], ""
	if len(args) > 1 {
		value = args[1]
	}
	if err := s.Set(key, value); err != nil {
		return err
	}

	if key == store.KeyAuthToken && strings.TrimSpace(value) == "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", key)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", key)
	return nil
}

func runSettingsUnset(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}

// maskToken keeps only the ends of a token visible.
func maskToken(tok string) string {
	if len(tok) <= 8 {
		return strings.Repeat("*", len(tok))
	}
	return tok[:4] + strings.Repeat("*", 8) + tok[len(tok)-4:]
}
