package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/imkarma/flowctl/internal/task"
	"github.com/imkarma/flowctl/internal/worker"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	watchInterval time.Duration
	watchOnce     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [id...]",
	Short: "Poll several task trees until they finish",
	Long:  "Fetches the trees of the given tasks in parallel every interval and prints a summary per tree. Stops when every tree is finished or on Ctrl-C.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Poll interval (default refresh_sec from config)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Poll a single time")
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	interval := watchInterval
	if interval <= 0 {
		interval = s.cfg.Refresh()
	}
	pool := worker.NewPool(worker.PoolConfig{
		Fetcher:    s.client,
		MaxWorkers: s.cfg.Workers(),
		Logger:     &log.Logger,
	})

	ctx := cmd.Context()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for round := 1; ; round++ {
		results := pool.Run(ctx, args)
		if ctx.Err() != nil {
			return nil
		}
		done := renderWatchRound(cmd.OutOrStdout(), round, results)
		if done || watchOnce {
			if n := worker.Failed(results); n > 0 {
				return fmt.Errorf("%d of %d trees could not be fetched", n, len(results))
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// renderWatchRound prints one line per tree and reports whether every tree
// has reached a terminal status.
func renderWatchRound(w io.Writer, round int, results []worker.Result) bool {
	fmt.Fprintf(w, "%s\n", colorDim.Sprintf("-- round %d, %s --", round, time.Now().Format("15:04:05")))
	allDone := true
	for _, r := range results {
		if r.Err != nil {
			allDone = false
			fmt.Fprintf(w, "  %-14s %s\n", task.ShortID(r.TaskID), colorRed.Sprint(r.Err))
			continue
		}
		root := &r.Tree.Task
		counts := task.CountByStatus(root)
		if !root.EffectiveStatus().Terminal() {
			allDone = false
		}
		fmt.Fprintf(w, "  %s  %d tasks: %d done, %d running, %d failed, %d pending\n",
			nodeLine(root), task.Size(root),
			counts[task.StatusCompleted], counts[task.StatusInProgress],
			counts[task.StatusFailed], counts[task.StatusPending])
	}
	return allDone
}
