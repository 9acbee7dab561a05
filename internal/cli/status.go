package cli

import (
	"fmt"

	"github.com/imkarma/flowctl/internal/apflow"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Quick status overview",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	h, err := s.client.Health(ctx)
	if err != nil {
		fmt.Fprintf(out, "%s %s unreachable: %v\n", colorRed.Sprint("●"), s.baseURL, err)
		return err
	}
	fmt.Fprintf(out, "%s %s %s (version %s)\n", colorGreen.Sprint("●"), s.baseURL, h.Status, h.Version)

	count, err := s.client.RunningTaskCount(ctx, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s\n", colorBold.Sprintf("Running: %d", count.Count))

	var running []apflow.RunningTask
	if count.Count > 0 {
		running, err = s.client.RunningTasks(ctx, "", s.cfg.Limit())
		if err != nil {
			return err
		}
	}
	renderRunning(out, running)

	if s.store == nil {
		return nil
	}
	recent, err := s.store.Recent(5)
	if err != nil {
		log.Warn().Err(err).Msg("read history")
		return nil
	}
	if len(recent) > 0 {
		fmt.Fprintf(out, "\n%s\n", colorBold.Sprint("Recent:"))
		for _, e := range recent {
			fmt.Fprintf(out, "  %s  %-9s %s %s\n", e.Timestamp.Local().Format("01-02 15:04"), e.Action, colorCyan.Sprint(e.TaskID), e.Name)
		}
	}
	return nil
}
