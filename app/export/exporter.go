package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lysyi3m/fractional-comb/app/database"
	"github.com/lysyi3m/fractional-comb/app/listing"
	"github.com/lysyi3m/fractional-comb/app/snapshot"
)

// Exporter writes the active listings and one day of compensation
// benchmarks as CSV files into a directory.
type Exporter struct {
	listingRepo  database.ListingRepositoryInterface
	snapshotRepo database.SnapshotRepositoryInterface
	dir          string
}

func NewExporter(listingRepo database.ListingRepositoryInterface, snapshotRepo database.SnapshotRepositoryInterface, dir string) *Exporter {
	return &Exporter{
		listingRepo:  listingRepo,
		snapshotRepo: snapshotRepo,
		dir:          dir,
	}
}

// Run exports the listings and the compensation snapshot for date. A zero
// date selects the latest stored snapshot. It returns the written paths.
func (e *Exporter) Run(ctx context.Context, date time.Time) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	if date.IsZero() {
		latest, err := e.snapshotRepo.GetLatestCompensationSnapshotDate(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to find latest snapshot: %w", err)
		}
		if latest != nil {
			date = *latest
		} else {
			date = time.Now()
		}
	}
	day := snapshot.Day(date)
	stamp := day.Format("2006-01-02")

	records, err := e.listingRepo.GetActiveListings(ctx, listing.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load active listings: %w", err)
	}

	rows, err := e.snapshotRepo.GetCompensationSnapshots(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load compensation snapshots: %w", err)
	}

	listingsPath := filepath.Join(e.dir, "listings-"+stamp+".csv")
	if err := writeFile(listingsPath, func(w io.Writer) error { return WriteListingsCSV(w, records) }); err != nil {
		return nil, err
	}

	compensationPath := filepath.Join(e.dir, "compensation-"+stamp+".csv")
	if err := writeFile(compensationPath, func(w io.Writer) error { return WriteCompensationCSV(w, rows) }); err != nil {
		return nil, err
	}

	slog.Info("Export completed", "date", stamp, "listings", len(records), "cohorts", len(rows), "dir", e.dir)

	return []string{listingsPath, compensationPath}, nil
}

// writeFile writes through a temporary file so readers never see a partial
// export.
func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}
	return nil
}
