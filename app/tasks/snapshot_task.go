package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lysyi3m/fractional-comb/app/database"
	"github.com/lysyi3m/fractional-comb/app/listing"
	"github.com/lysyi3m/fractional-comb/app/snapshot"
)

// SnapshotTask writes the day's compensation benchmarks and listing counts.
// Compensation rows already stored for the day are left untouched.
type SnapshotTask struct {
	Task
	date         time.Time
	listingRepo  database.ListingRepositoryInterface
	snapshotRepo database.SnapshotRepositoryInterface
	aggregator   *snapshot.Aggregator

	Inserted int
}

func NewSnapshotTask(date time.Time, listingRepo database.ListingRepositoryInterface,
	snapshotRepo database.SnapshotRepositoryInterface, aggregator *snapshot.Aggregator) *SnapshotTask {
	return &SnapshotTask{
		Task:         NewTask(TaskTypeSnapshot, snapshot.AllSources),
		date:         snapshot.Day(date),
		listingRepo:  listingRepo,
		snapshotRepo: snapshotRepo,
		aggregator:   aggregator,
	}
}

func (t *SnapshotTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	records, err := t.listingRepo.GetListings(ctx, listing.Filter{})
	if err != nil {
		return fmt.Errorf("failed to load listings: %w", err)
	}

	rows := t.aggregator.Run(t.date, records)
	inserted, err := t.snapshotRepo.InsertCompensationSnapshots(ctx, rows)
	if err != nil {
		return fmt.Errorf("failed to store compensation snapshots: %w", err)
	}
	t.Inserted = inserted

	if err := t.snapshotRepo.UpsertListingSnapshot(ctx, snapshot.DailyCounts(t.date, records)); err != nil {
		return fmt.Errorf("failed to store listing snapshot: %w", err)
	}

	bySource := make(map[string][]listing.Record)
	for _, r := range records {
		bySource[r.Source] = append(bySource[r.Source], r)
	}
	sources := make([]string, 0, len(bySource))
	for name := range bySource {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	for _, name := range sources {
		counts := snapshot.DailyCounts(t.date, bySource[name])
		counts.Source = name
		if err := t.snapshotRepo.UpsertListingSnapshot(ctx, counts); err != nil {
			return fmt.Errorf("failed to store listing snapshot for %s: %w", name, err)
		}
	}

	slog.Info("Task completed",
		"type", string(t.GetType()),
		"date", t.date.Format("2006-01-02"),
		"duration", t.GetDuration(),
		"cohorts", len(rows),
		"inserted", inserted,
		"sources", len(sources))

	return nil
}
