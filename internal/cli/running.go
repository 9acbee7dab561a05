package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	runningUser  string
	runningLimit int
)

var runningCmd = &cobra.Command{
	Use:   "running",
	Short: "Inspect running tasks",
}

var runningListCmd = &cobra.Command{
	Use:   "list",
	Short: "List running tasks",
	Args:  cobra.NoArgs,
	RunE:  runRunningList,
}

var runningStatusCmd = &cobra.Command{
	Use:   "status [id...]",
	Short: "Probe the status of several tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRunningStatus,
}

var runningCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count running tasks",
	Args:  cobra.NoArgs,
	RunE:  runRunningCount,
}

func init() {
	runningListCmd.Flags().StringVarP(&runningUser, "user", "u", "", "Only tasks of this user")
	runningListCmd.Flags().IntVarP(&runningLimit, "limit", "n", 0, "Maximum entries (default from config, 100)")
	runningCountCmd.Flags().StringVarP(&runningUser, "user", "u", "", "Only tasks of this user")

	runningCmd.AddCommand(runningListCmd)
	runningCmd.AddCommand(runningStatusCmd)
	runningCmd.AddCommand(runningCountCmd)
}

func runRunningList(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	limit := runningLimit
	if limit <= 0 {
		limit = s.cfg.Limit()
	}
	tasks, err := s.client.RunningTasks(cmd.Context(), runningUser, limit)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), tasks)
	}
	renderRunning(cmd.OutOrStdout(), tasks)
	return nil
}

func runRunningStatus(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	statuses, err := s.client.RunningTaskStatus(cmd.Context(), args)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), statuses)
	}
	renderOutcomes(cmd.OutOrStdout(), statuses)
	return nil
}

func runRunningCount(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	count, err := s.client.RunningTaskCount(cmd.Context(), runningUser)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), count)
	}
	if count.UserID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%d running (user %s)\n", count.Count, count.UserID)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d running\n", count.Count)
	return nil
}
