package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/lysyi3m/fractional-comb/app/database"
	"github.com/lysyi3m/fractional-comb/app/lifecycle"
	"github.com/lysyi3m/fractional-comb/app/listing"
	"github.com/lysyi3m/fractional-comb/app/source"
)

// ProcessSourceTask fetches one source, canonicalizes what it returned and
// reconciles the batch against stored listings. A fetch error is recorded as
// a failed run and is not retried. Repository errors are returned so the
// scheduler can retry.
type ProcessSourceTask struct {
	Task
	adapter source.Adapter
	canon   BatchCanonicalizer
	engine  Reconciler
	runRepo database.RunRepositoryInterface
	lockDir string
	now     func() time.Time

	Result *lifecycle.Result
}

func NewProcessSourceTask(adapter source.Adapter, canon BatchCanonicalizer, engine Reconciler,
	runRepo database.RunRepositoryInterface, lockDir string) *ProcessSourceTask {
	return &ProcessSourceTask{
		Task:    NewTask(TaskTypeProcessSource, adapter.Name()),
		adapter: adapter,
		canon:   canon,
		engine:  engine,
		runRepo: runRepo,
		lockDir: lockDir,
		now:     time.Now,
	}
}

func (t *ProcessSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	lock, acquired, err := t.acquireLock()
	if err != nil {
		return err
	}
	if !acquired {
		slog.Info("Source run already in progress, skipping", "source", t.Source)
		return nil
	}
	if lock != nil {
		defer func() {
			if err := lock.Unlock(); err != nil {
				slog.Warn("Failed to release source lock", "source", t.Source, "error", err)
			}
		}()
	}

	runAt := t.now().UTC()
	runID, err := t.runRepo.StartRun(ctx, t.Source, runAt)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}

	run := listing.RunLog{
		ID:        runID,
		Source:    t.Source,
		StartedAt: runAt,
		Status:    listing.RunStatusSuccess,
	}

	records, fetchErr := t.adapter.Fetch(ctx)
	if fetchErr != nil {
		slog.Warn("Source fetch failed", "source", t.Source, "error", fetchErr)

		if _, err := t.engine.Reconcile(ctx, lifecycle.Batch{Source: t.Source, RunAt: runAt}); err != nil {
			slog.Warn("Failed to reconcile failed run", "source", t.Source, "error", err)
		}

		run.Status = listing.RunStatusFailed
		run.Error = fetchErr.Error()
		if err := t.finish(ctx, run); err != nil {
			return err
		}
		return nil
	}

	listings := t.canon.RunAll(ctx, records)

	result, err := t.engine.Reconcile(ctx, lifecycle.Batch{
		Source:    t.Source,
		Listings:  listings,
		Succeeded: true,
		RunAt:     runAt,
	})
	if err != nil {
		run.Status = listing.RunStatusFailed
		run.Error = err.Error()
		if finishErr := t.finish(ctx, run); finishErr != nil {
			slog.Warn("Failed to record failed run", "source", t.Source, "error", finishErr)
		}
		return fmt.Errorf("failed to reconcile source: %w", err)
	}

	run.ListingsFound = result.Found
	run.ListingsNew = result.New
	run.ListingsUpdated = result.Updated
	run.ListingsReactivated = result.Reactivated
	run.ListingsDeactivated = result.Deactivated
	if err := t.finish(ctx, run); err != nil {
		return err
	}
	t.Result = &result

	slog.Info("Task completed",
		"type", string(t.GetType()),
		"source", t.Source,
		"duration", t.GetDuration(),
		"found", result.Found,
		"new", result.New,
		"updated", result.Updated,
		"reactivated", result.Reactivated,
		"deactivated", result.Deactivated)

	return nil
}

func (t *ProcessSourceTask) finish(ctx context.Context, run listing.RunLog) error {
	completedAt := t.now().UTC()
	run.CompletedAt = &completedAt
	if err := t.runRepo.FinishRun(ctx, run); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// acquireLock takes the per-source file lock. An empty lock directory
// disables locking.
func (t *ProcessSourceTask) acquireLock() (*flock.Flock, bool, error) {
	if t.lockDir == "" {
		return nil, true, nil
	}

	if err := os.MkdirAll(t.lockDir, 0755); err != nil {
		return nil, false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(filepath.Join(t.lockDir, t.Source+".lock"))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("failed to lock source %s: %w", t.Source, err)
	}
	return lock, acquired, nil
}
