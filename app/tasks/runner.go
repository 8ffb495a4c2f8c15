package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/fractional-comb/app/lifecycle"
)

// Runner executes source runs once, in parallel, for the run command.
type Runner struct {
	pipeline    *Pipeline
	workerCount int
	timeout     time.Duration
}

func NewRunner(pipeline *Pipeline, workerCount int) *Runner {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Runner{
		pipeline:    pipeline,
		workerCount: workerCount,
		timeout:     10 * time.Minute,
	}
}

// RunSources runs the named sources, or every enabled source when names is
// empty. One source failing never stops the others; the returned error
// reports how many did.
func (r *Runner) RunSources(ctx context.Context, names []string) ([]lifecycle.Result, error) {
	if len(names) == 0 {
		names = r.pipeline.EnabledSources()
	}

	var (
		mu      sync.Mutex
		results []lifecycle.Result
		failed  []string
	)

	var g errgroup.Group
	g.SetLimit(r.workerCount)

	for _, name := range names {
		task, err := r.pipeline.ProcessSourceTask(name)
		if err != nil {
			slog.Error("Failed to create ProcessSourceTask", "source", name, "error", err)
			mu.Lock()
			failed = append(failed, name)
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			tctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			task.Start()
			if err := task.Execute(tctx); err != nil {
				slog.Error("Source run failed", "source", name, "error", err)
				mu.Lock()
				failed = append(failed, name)
				mu.Unlock()
				return nil
			}

			if task.Result != nil {
				mu.Lock()
				results = append(results, *task.Result)
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	if len(failed) > 0 {
		return results, fmt.Errorf("%d of %d source runs failed: %v", len(failed), len(names), failed)
	}
	return results, nil
}

// Snapshot writes the snapshot for date.
func (r *Runner) Snapshot(ctx context.Context, date time.Time) (int, error) {
	task := r.pipeline.SnapshotTask(date)
	task.Start()
	if err := task.Execute(ctx); err != nil {
		return 0, err
	}
	return task.Inserted, nil
}
