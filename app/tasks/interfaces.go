package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/fractional-comb/app/lifecycle"
	"github.com/lysyi3m/fractional-comb/app/listing"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the serve command and the API to queue source runs and snapshots.
// Example usage:
//
//	scheduler, err := NewScheduler(pipeline, "@daily", 4)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueSource("fractional-jobs")
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueSource(name string) (string, error)
	EnqueueSnapshot(date time.Time) (string, error)
}

// BatchCanonicalizer turns a run's raw records into canonical listings.
type BatchCanonicalizer interface {
	RunAll(ctx context.Context, raws []listing.RawRecord) []listing.CanonicalListing
}

type Reconciler interface {
	Reconcile(ctx context.Context, batch lifecycle.Batch) (lifecycle.Result, error)
}
