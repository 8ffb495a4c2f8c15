package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

var _ ListingRepositoryInterface = (*ListingRepository)(nil)

const listingColumns = `id, source, source_id, source_url, title, company_name, company_normalized,
	company_url, location_raw, description_raw, description_snippet, compensation_type,
	compensation_min, compensation_max, hours_min, hours_max, date_posted, observed_at,
	function_category, seniority_tier, location_type, location_restriction, location_state,
	hours_per_week_min, hours_per_week_max, hours_bucket, hourly_min, hourly_max,
	monthly_min, monthly_max, currency, experience_years, is_active, first_seen, last_seen,
	last_checked_at, consecutive_absences, deactivated_at`

const upsertListingQuery = `INSERT INTO listings (` + listingColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (source, source_id) DO UPDATE SET
		source_url = excluded.source_url,
		title = excluded.title,
		company_name = excluded.company_name,
		company_normalized = excluded.company_normalized,
		company_url = excluded.company_url,
		location_raw = excluded.location_raw,
		description_raw = excluded.description_raw,
		description_snippet = excluded.description_snippet,
		compensation_type = excluded.compensation_type,
		compensation_min = excluded.compensation_min,
		compensation_max = excluded.compensation_max,
		hours_min = excluded.hours_min,
		hours_max = excluded.hours_max,
		date_posted = excluded.date_posted,
		observed_at = excluded.observed_at,
		function_category = excluded.function_category,
		seniority_tier = excluded.seniority_tier,
		location_type = excluded.location_type,
		location_restriction = excluded.location_restriction,
		location_state = excluded.location_state,
		hours_per_week_min = excluded.hours_per_week_min,
		hours_per_week_max = excluded.hours_per_week_max,
		hours_bucket = excluded.hours_bucket,
		hourly_min = excluded.hourly_min,
		hourly_max = excluded.hourly_max,
		monthly_min = excluded.monthly_min,
		monthly_max = excluded.monthly_max,
		currency = excluded.currency,
		experience_years = excluded.experience_years,
		is_active = excluded.is_active,
		last_seen = excluded.last_seen,
		last_checked_at = excluded.last_checked_at,
		consecutive_absences = excluded.consecutive_absences,
		deactivated_at = excluded.deactivated_at`

// ListingRepository stores one row per (source, source_id). first_seen is
// written on insert only.
type ListingRepository struct {
	db *DB
}

func NewListingRepository(db *DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) UpsertListing(ctx context.Context, record listing.Record) error {
	return r.UpsertListings(ctx, []listing.Record{record})
}

// UpsertListings writes all records in a single transaction.
func (r *ListingRepository) UpsertListings(ctx context.Context, records []listing.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.db.Rebind(upsertListingQuery))
	if err != nil {
		return fmt.Errorf("failed to prepare listing upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.Source == "" || rec.SourceID == "" {
			return fmt.Errorf("listing %q is missing source identity", rec.ID)
		}
		if _, err := stmt.ExecContext(ctx, listingArgs(rec)...); err != nil {
			return fmt.Errorf("failed to upsert listing %s/%s: %w", rec.Source, rec.SourceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit listings: %w", err)
	}

	return nil
}

func (r *ListingRepository) GetListing(ctx context.Context, source, sourceID string) (*listing.Record, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT `+listingColumns+` FROM listings WHERE source = ? AND source_id = ?`), source, sourceID)

	rec, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	return &rec, nil
}

func (r *ListingRepository) GetListings(ctx context.Context, filter listing.Filter) ([]listing.Record, error) {
	var (
		where []string
		args  []any
	)

	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.FunctionCategory != "" {
		where = append(where, "function_category = ?")
		args = append(args, filter.FunctionCategory)
	}
	if filter.SeniorityTier != "" {
		where = append(where, "seniority_tier = ?")
		args = append(args, filter.SeniorityTier)
	}
	if filter.LocationType != "" {
		where = append(where, "location_type = ?")
		args = append(args, filter.LocationType)
	}
	if filter.ActiveOnly {
		where = append(where, "is_active = 1")
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date_posted DESC, source, source_id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var records []listing.Record
	for rows.Next() {
		rec, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listings: %w", err)
	}

	return records, nil
}

func (r *ListingRepository) GetActiveListings(ctx context.Context, filter listing.Filter) ([]listing.Record, error) {
	filter.ActiveOnly = true
	return r.GetListings(ctx, filter)
}

// GetListingCounts returns the total and active listing counts.
func (r *ListingRepository) GetListingCounts(ctx context.Context) (int, int, error) {
	var total, active int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(is_active), 0) FROM listings`).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return total, active, nil
}

func listingArgs(rec listing.Record) []any {
	return []any{
		rec.ID, rec.Source, rec.SourceID, rec.SourceURL, rec.Title, rec.CompanyName, rec.CompanyNormalized,
		rec.CompanyURL, rec.LocationRaw, rec.DescriptionRaw, rec.DescriptionSnippet, string(rec.CompensationType),
		nullFloat(rec.CompensationMin), nullFloat(rec.CompensationMax), nullFloat(rec.HoursMin), nullFloat(rec.HoursMax),
		formatTime(rec.DatePosted), formatTime(rec.ObservedAt),
		rec.FunctionCategory, rec.SeniorityTier, rec.LocationType, rec.LocationRestriction, rec.LocationState,
		nullFloat(rec.HoursPerWeekMin), nullFloat(rec.HoursPerWeekMax), rec.HoursBucket,
		nullFloat(rec.HourlyMin), nullFloat(rec.HourlyMax), nullFloat(rec.MonthlyMin), nullFloat(rec.MonthlyMax),
		rec.Currency, nullInt(rec.ExperienceYears), boolToInt(rec.IsActive),
		formatTime(rec.FirstSeen), formatTime(rec.LastSeen), formatTime(rec.LastCheckedAt),
		rec.ConsecutiveAbsences, formatNullTime(rec.DeactivatedAt),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(s scanner) (listing.Record, error) {
	var (
		rec                                          listing.Record
		compType                                     string
		compMin, compMax, hoursMin, hoursMax         sql.NullFloat64
		weekMin, weekMax                             sql.NullFloat64
		hourlyMin, hourlyMax, monthlyMin, monthlyMax sql.NullFloat64
		experience                                   sql.NullInt64
		isActive                                     int
		datePosted, observedAt                       string
		firstSeen, lastSeen, lastChecked             string
		deactivatedAt                                sql.NullString
	)

	err := s.Scan(
		&rec.ID, &rec.Source, &rec.SourceID, &rec.SourceURL, &rec.Title, &rec.CompanyName, &rec.CompanyNormalized,
		&rec.CompanyURL, &rec.LocationRaw, &rec.DescriptionRaw, &rec.DescriptionSnippet, &compType,
		&compMin, &compMax, &hoursMin, &hoursMax, &datePosted, &observedAt,
		&rec.FunctionCategory, &rec.SeniorityTier, &rec.LocationType, &rec.LocationRestriction, &rec.LocationState,
		&weekMin, &weekMax, &rec.HoursBucket, &hourlyMin, &hourlyMax, &monthlyMin, &monthlyMax,
		&rec.Currency, &experience, &isActive, &firstSeen, &lastSeen, &lastChecked,
		&rec.ConsecutiveAbsences, &deactivatedAt,
	)
	if err != nil {
		return listing.Record{}, err
	}

	rec.CompensationType = listing.CompensationType(compType)
	rec.CompensationMin = floatPtr(compMin)
	rec.CompensationMax = floatPtr(compMax)
	rec.HoursMin = floatPtr(hoursMin)
	rec.HoursMax = floatPtr(hoursMax)
	rec.HoursPerWeekMin = floatPtr(weekMin)
	rec.HoursPerWeekMax = floatPtr(weekMax)
	rec.HourlyMin = floatPtr(hourlyMin)
	rec.HourlyMax = floatPtr(hourlyMax)
	rec.MonthlyMin = floatPtr(monthlyMin)
	rec.MonthlyMax = floatPtr(monthlyMax)
	rec.ExperienceYears = intPtr(experience)
	rec.IsActive = isActive == 1

	if rec.DatePosted, err = parseTime(datePosted); err != nil {
		return listing.Record{}, err
	}
	if rec.ObservedAt, err = parseTime(observedAt); err != nil {
		return listing.Record{}, err
	}
	if rec.FirstSeen, err = parseTime(firstSeen); err != nil {
		return listing.Record{}, err
	}
	if rec.LastSeen, err = parseTime(lastSeen); err != nil {
		return listing.Record{}, err
	}
	if rec.LastCheckedAt, err = parseTime(lastChecked); err != nil {
		return listing.Record{}, err
	}
	if rec.DeactivatedAt, err = parseNullTime(deactivatedAt); err != nil {
		return listing.Record{}, err
	}

	return rec, nil
}
