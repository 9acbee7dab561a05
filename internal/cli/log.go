package cli

import (
	"fmt"

	"github.com/imkarma/flowctl/internal/store"
	"github.com/spf13/cobra"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log [task-id]",
	Short: "Show local history, optionally for one task",
	Long:  "Lists tasks this machine created, copied, cancelled or deleted, newest first.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 20, "Maximum entries")
}

func runLog(cmd *cobra.Command, args []string) error {
	s, err := mustStore()
	if err != nil {
		return err
	}
	defer s.Close()

	var entries []store.Entry
	if len(args) == 1 {
		entries, err = s.History(args[0])
	} else {
		entries, err = s.Recent(logLimit)
	}
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No history.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s  %-9s %s %s %s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Action, e.TaskID, e.Name, colorDim.Sprint(e.BaseURL))
	}
	return nil
}
