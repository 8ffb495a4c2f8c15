package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

var _ RunRepositoryInterface = (*RunRepository)(nil)

// RunRepository keeps the audit log of source runs.
type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) StartRun(ctx context.Context, source string, startedAt time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		INSERT INTO runs (source, started_at, status)
		VALUES (?, ?, ?)
		RETURNING id
	`), source, formatTime(startedAt), string(listing.RunStatusRunning)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

func (r *RunRepository) FinishRun(ctx context.Context, run listing.RunLog) error {
	completedAt := run.CompletedAt
	if completedAt == nil {
		now := time.Now().UTC()
		completedAt = &now
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE runs
		SET completed_at = ?, status = ?, listings_found = ?, listings_new = ?,
			listings_updated = ?, listings_reactivated = ?, listings_deactivated = ?, error_message = ?
		WHERE id = ?
	`), formatTime(*completedAt), string(run.Status), run.ListingsFound, run.ListingsNew,
		run.ListingsUpdated, run.ListingsReactivated, run.ListingsDeactivated, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %d not found", run.ID)
	}

	return nil
}

// GetRecentRuns returns the newest runs first. An empty source matches all.
func (r *RunRepository) GetRecentRuns(ctx context.Context, source string, limit int) ([]listing.RunLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, source, started_at, completed_at, status, listings_found, listings_new,
		listings_updated, listings_reactivated, listings_deactivated, error_message
		FROM runs`
	var args []any
	if source != "" {
		query += ` WHERE source = ?`
		args = append(args, source)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []listing.RunLog
	for rows.Next() {
		var (
			run         listing.RunLog
			startedAt   string
			completedAt sql.NullString
			status      string
		)

		if err := rows.Scan(&run.ID, &run.Source, &startedAt, &completedAt, &status, &run.ListingsFound,
			&run.ListingsNew, &run.ListingsUpdated, &run.ListingsReactivated, &run.ListingsDeactivated, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.Status = listing.RunStatus(status)
		if run.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if run.CompletedAt, err = parseNullTime(completedAt); err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}
