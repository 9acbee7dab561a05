package cli

import (
	"context"

	"github.com/imkarma/flowctl/internal/config"
	"github.com/imkarma/flowctl/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagConfig string
	flagAPIURL string
	flagToken  string
	flagDebug  bool
	flagJSON   bool
)

var rootCmd = &cobra.Command{
	Use:           "flowctl",
	Short:         "Client for a JSON-RPC task flow server",
	Long:          "flowctl creates, inspects and controls task trees on a flow server.\nTalks JSON-RPC 2.0 over HTTP to the /tasks and /system endpoints.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		env, err := config.LoadEnv()
		if err != nil {
			return err
		}
		logging.Init(flagDebug, env.LogLevel)
		return nil
	},
}

// Execute runs the root command. Cancelling ctx aborts in-flight requests.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default .flowctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Flow server base URL")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Bearer token")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print raw JSON results")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(runningCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(agentCardCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(watchCmd)
}
