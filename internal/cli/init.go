package cli

import (
	"fmt"
	"os"

	"github.com/imkarma/flowctl/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize flowctl in the current directory",
	Long:  "Creates a .flowctl/ directory with default config and settings database.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	// Check if already initialized.
	if _, err := os.Stat(flowDirName); err == nil {
		return fmt.Errorf("flowctl already initialized in this directory (.flowctl/ exists)")
	}

	if err := os.MkdirAll(flowDirName, 0755); err != nil {
		return fmt.Errorf("create .flowctl: %w", err)
	}

	// Write default config.
	cfg := config.DefaultConfig()
	if err := config.Save(flowPath("config.yaml"), cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	// Create database by opening store (migrations run automatically).
	store, err := openStore(flowPath("settings.db"))
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	store.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Initialized flowctl in .flowctl/")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Run: %s\n", colorCyan.Sprint("flowctl settings set api_url http://localhost:8000"))
	fmt.Fprintf(out, "  2. Run: %s\n", colorCyan.Sprint("flowctl settings set auth_token <jwt>"))
	fmt.Fprintf(out, "  3. Run: %s\n", colorCyan.Sprint("flowctl health"))

	return nil
}
