package database

import (
	"context"
	"time"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

type ListingRepositoryInterface interface {
	GetListing(ctx context.Context, source, sourceID string) (*listing.Record, error)
	GetListings(ctx context.Context, filter listing.Filter) ([]listing.Record, error)
	GetActiveListings(ctx context.Context, filter listing.Filter) ([]listing.Record, error)
	GetListingCounts(ctx context.Context) (int, int, error)

	UpsertListing(ctx context.Context, record listing.Record) error
	UpsertListings(ctx context.Context, records []listing.Record) error
}

type SnapshotRepositoryInterface interface {
	InsertCompensationSnapshots(ctx context.Context, rows []listing.CompensationSnapshot) (int, error)
	GetCompensationSnapshots(ctx context.Context, date time.Time) ([]listing.CompensationSnapshot, error)
	GetLatestCompensationSnapshotDate(ctx context.Context) (*time.Time, error)

	UpsertListingSnapshot(ctx context.Context, snapshot listing.ListingSnapshot) error
	GetListingSnapshots(ctx context.Context, source string, since time.Time) ([]listing.ListingSnapshot, error)
}

type RunRepositoryInterface interface {
	StartRun(ctx context.Context, source string, startedAt time.Time) (int64, error)
	FinishRun(ctx context.Context, run listing.RunLog) error
	GetRecentRuns(ctx context.Context, source string, limit int) ([]listing.RunLog, error)
}
