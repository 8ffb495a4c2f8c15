package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

var _ SnapshotRepositoryInterface = (*SnapshotRepository)(nil)

type SnapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// InsertCompensationSnapshots stores new cohort rows. Rows that already exist
// for the same date and cohort are left untouched. Returns the number of rows
// written.
func (r *SnapshotRepository) InsertCompensationSnapshots(ctx context.Context, rows []listing.CompensationSnapshot) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(`
		INSERT INTO compensation_snapshots (
			snapshot_date, function_category, seniority_tier, location_type, sample_size,
			hourly_rate_min_avg, hourly_rate_max_avg, hourly_rate_median,
			monthly_retainer_min_avg, monthly_retainer_max_avg, monthly_retainer_median
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (snapshot_date, function_category, seniority_tier, location_type) DO NOTHING
	`))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, row := range rows {
		res, err := stmt.ExecContext(ctx,
			formatDate(row.SnapshotDate), row.FunctionCategory, row.SeniorityTier, row.LocationType, row.SampleSize,
			nullFloat(row.HourlyRateMinAvg), nullFloat(row.HourlyRateMaxAvg), nullFloat(row.HourlyRateMedian),
			nullFloat(row.MonthlyRetainerMinAvg), nullFloat(row.MonthlyRetainerMaxAvg), nullFloat(row.MonthlyRetainerMedian))
		if err != nil {
			return 0, fmt.Errorf("failed to insert compensation snapshot: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit compensation snapshots: %w", err)
	}

	return inserted, nil
}

func (r *SnapshotRepository) GetCompensationSnapshots(ctx context.Context, date time.Time) ([]listing.CompensationSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT snapshot_date, function_category, seniority_tier, location_type, sample_size,
			hourly_rate_min_avg, hourly_rate_max_avg, hourly_rate_median,
			monthly_retainer_min_avg, monthly_retainer_max_avg, monthly_retainer_median
		FROM compensation_snapshots
		WHERE snapshot_date = ?
		ORDER BY function_category, seniority_tier, location_type
	`), formatDate(date))
	if err != nil {
		return nil, fmt.Errorf("failed to query compensation snapshots: %w", err)
	}
	defer rows.Close()

	var out []listing.CompensationSnapshot
	for rows.Next() {
		var (
			s                         listing.CompensationSnapshot
			day                       string
			hMinAvg, hMaxAvg, hMedian sql.NullFloat64
			mMinAvg, mMaxAvg, mMedian sql.NullFloat64
		)

		if err := rows.Scan(&day, &s.FunctionCategory, &s.SeniorityTier, &s.LocationType, &s.SampleSize,
			&hMinAvg, &hMaxAvg, &hMedian, &mMinAvg, &mMaxAvg, &mMedian); err != nil {
			return nil, fmt.Errorf("failed to scan compensation snapshot: %w", err)
		}

		if s.SnapshotDate, err = parseDate(day); err != nil {
			return nil, err
		}
		s.HourlyRateMinAvg = floatPtr(hMinAvg)
		s.HourlyRateMaxAvg = floatPtr(hMaxAvg)
		s.HourlyRateMedian = floatPtr(hMedian)
		s.MonthlyRetainerMinAvg = floatPtr(mMinAvg)
		s.MonthlyRetainerMaxAvg = floatPtr(mMaxAvg)
		s.MonthlyRetainerMedian = floatPtr(mMedian)

		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate compensation snapshots: %w", err)
	}

	return out, nil
}

func (r *SnapshotRepository) GetLatestCompensationSnapshotDate(ctx context.Context) (*time.Time, error) {
	var day sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT MAX(snapshot_date) FROM compensation_snapshots`).Scan(&day)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot date: %w", err)
	}
	if !day.Valid || day.String == "" {
		return nil, nil
	}

	t, err := parseDate(day.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertListingSnapshot stores the day's counts, replacing an earlier run on
// the same day.
func (r *SnapshotRepository) UpsertListingSnapshot(ctx context.Context, s listing.ListingSnapshot) error {
	byFunction, err := json.Marshal(s.ByFunction)
	if err != nil {
		return fmt.Errorf("failed to encode function counts: %w", err)
	}
	bySeniority, err := json.Marshal(s.BySeniority)
	if err != nil {
		return fmt.Errorf("failed to encode seniority counts: %w", err)
	}
	byLocation, err := json.Marshal(s.ByLocationType)
	if err != nil {
		return fmt.Errorf("failed to encode location counts: %w", err)
	}
	byHours, err := json.Marshal(s.ByHoursBucket)
	if err != nil {
		return fmt.Errorf("failed to encode hours counts: %w", err)
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO listing_snapshots (
			snapshot_date, source, total_active, new_today, removed_today,
			by_function, by_seniority, by_location_type, by_hours_bucket,
			comp_disclosed_count, comp_disclosed_pct
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (snapshot_date, source) DO UPDATE SET
			total_active = excluded.total_active,
			new_today = excluded.new_today,
			removed_today = excluded.removed_today,
			by_function = excluded.by_function,
			by_seniority = excluded.by_seniority,
			by_location_type = excluded.by_location_type,
			by_hours_bucket = excluded.by_hours_bucket,
			comp_disclosed_count = excluded.comp_disclosed_count,
			comp_disclosed_pct = excluded.comp_disclosed_pct
	`), formatDate(s.SnapshotDate), s.Source, s.TotalActive, s.NewToday, s.RemovedToday,
		string(byFunction), string(bySeniority), string(byLocation), string(byHours),
		s.CompDisclosedCount, s.CompDisclosedPct)
	if err != nil {
		return fmt.Errorf("failed to upsert listing snapshot: %w", err)
	}

	return nil
}

func (r *SnapshotRepository) GetListingSnapshots(ctx context.Context, source string, since time.Time) ([]listing.ListingSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT snapshot_date, source, total_active, new_today, removed_today,
			by_function, by_seniority, by_location_type, by_hours_bucket,
			comp_disclosed_count, comp_disclosed_pct
		FROM listing_snapshots
		WHERE source = ? AND snapshot_date >= ?
		ORDER BY snapshot_date
	`), source, formatDate(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []listing.ListingSnapshot
	for rows.Next() {
		var (
			s                                          listing.ListingSnapshot
			day                                        string
			byFunction, bySeniority, byLocation, byHrs string
		)

		if err := rows.Scan(&day, &s.Source, &s.TotalActive, &s.NewToday, &s.RemovedToday,
			&byFunction, &bySeniority, &byLocation, &byHrs,
			&s.CompDisclosedCount, &s.CompDisclosedPct); err != nil {
			return nil, fmt.Errorf("failed to scan listing snapshot: %w", err)
		}

		if s.SnapshotDate, err = parseDate(day); err != nil {
			return nil, err
		}

		for _, m := range []struct {
			raw string
			dst *map[string]int
		}{
			{byFunction, &s.ByFunction},
			{bySeniority, &s.BySeniority},
			{byLocation, &s.ByLocationType},
			{byHrs, &s.ByHoursBucket},
		} {
			if err := json.Unmarshal([]byte(m.raw), m.dst); err != nil {
				return nil, fmt.Errorf("failed to decode listing snapshot counts: %w", err)
			}
		}

		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listing snapshots: %w", err)
	}

	return out, nil
}
