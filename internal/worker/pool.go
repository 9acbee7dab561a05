// Package worker fetches many task trees in parallel. Each fetch runs in its
// own goroutine, up to a fixed limit, and one failing fetch never fails the
// batch.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/imkarma/flowctl/internal/apflow"
	"github.com/imkarma/flowctl/internal/task"
)

// TreeFetcher loads the tree a task belongs to. *apflow.Client satisfies it.
type TreeFetcher interface {
	GetTaskTree(ctx context.Context, q apflow.TreeQuery) (*task.Tree, error)
}

// Result holds the outcome of a single fetch.
type Result struct {
	TaskID   string
	Tree     *task.Tree
	Err      error
	Duration time.Duration
}

// Pool manages parallel tree fetches.
type Pool struct {
	fetcher    TreeFetcher
	maxWorkers int
	log        zerolog.Logger
}

// PoolConfig holds configuration for creating a worker pool.
type PoolConfig struct {
	Fetcher    TreeFetcher
	MaxWorkers int
	Logger     *zerolog.Logger
}

// NewPool creates a new worker pool.
func NewPool(pc PoolConfig) *Pool {
	log := zerolog.Nop()
	if pc.Logger != nil {
		log = *pc.Logger
	}
	return &Pool{
		fetcher:    pc.Fetcher,
		maxWorkers: pc.MaxWorkers,
		log:        log,
	}
}

// Run fetches the tree of every id and returns one result per id, in the
// order the ids were given.
func (p *Pool) Run(ctx context.Context, taskIDs []string) []Result {
	if p.maxWorkers <= 1 || len(taskIDs) <= 1 {
		return p.runSequential(ctx, taskIDs)
	}
	return p.runParallel(ctx, taskIDs)
}

func (p *Pool) runSequential(ctx context.Context, taskIDs []string) []Result {
	results := make([]Result, 0, len(taskIDs))
	for _, id := range taskIDs {
		results = append(results, p.fetch(ctx, id))
	}
	return results
}

func (p *Pool) runParallel(ctx context.Context, taskIDs []string) []Result {
	results := make([]Result, len(taskIDs))

	wp := pool.New().WithMaxGoroutines(p.maxWorkers)
	for i, id := range taskIDs {
		wp.Go(func() {
			// Each goroutine owns its slot.
			results[i] = p.fetch(ctx, id)
		})
	}
	wp.Wait()

	return results
}

// fetch runs one fetch. A panicking fetcher is reported as that id's error.
func (p *Pool) fetch(ctx context.Context, taskID string) Result {
	start := time.Now()
	r := Result{TaskID: taskID}

	if err := ctx.Err(); err != nil {
		r.Err = err
		return r
	}

	var catcher panics.Catcher
	catcher.Try(func() {
		r.Tree, r.Err = p.fetcher.GetTaskTree(ctx, apflow.TreeQuery{TaskID: taskID})
	})
	if r.Err == nil {
		r.Err = catcher.Recovered().AsError()
	}
	if r.Err != nil {
		r.Tree = nil
	}
	r.Duration = time.Since(start)

	ev := p.log.Debug()
	if r.Err != nil {
		ev = p.log.Warn().Err(r.Err)
	}
	ev.Str("task_id", taskID).Dur("took", r.Duration).Msg("tree fetch")
	return r
}

// Failed counts results that carry an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
