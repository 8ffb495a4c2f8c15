package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

// Column order is part of the downstream contract.
var compensationHeader = []string{
	"snapshot_date",
	"function_category",
	"seniority_tier",
	"location_type",
	"sample_size",
	"hourly_rate_min_avg",
	"hourly_rate_max_avg",
	"hourly_rate_median",
	"monthly_retainer_min_avg",
	"monthly_retainer_max_avg",
	"monthly_retainer_median",
}

var listingHeader = []string{
	"id",
	"source",
	"source_id",
	"source_url",
	"title",
	"company_name",
	"company_normalized",
	"function_category",
	"seniority_tier",
	"location_type",
	"location_restriction",
	"location_state",
	"hours_per_week_min",
	"hours_per_week_max",
	"hours_bucket",
	"compensation_type",
	"hourly_min",
	"hourly_max",
	"monthly_min",
	"monthly_max",
	"currency",
	"experience_years",
	"date_posted",
	"first_seen",
	"last_seen",
}

func WriteCompensationCSV(w io.Writer, rows []listing.CompensationSnapshot) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(compensationHeader); err != nil {
		return err
	}

	for _, r := range rows {
		if err := cw.Write([]string{
			r.SnapshotDate.Format("2006-01-02"),
			r.FunctionCategory,
			r.SeniorityTier,
			r.LocationType,
			strconv.Itoa(r.SampleSize),
			formatFloat(r.HourlyRateMinAvg),
			formatFloat(r.HourlyRateMaxAvg),
			formatFloat(r.HourlyRateMedian),
			formatFloat(r.MonthlyRetainerMinAvg),
			formatFloat(r.MonthlyRetainerMaxAvg),
			formatFloat(r.MonthlyRetainerMedian),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteListingsCSV(w io.Writer, records []listing.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(listingHeader); err != nil {
		return err
	}

	for _, r := range records {
		experience := ""
		if r.ExperienceYears != nil {
			experience = strconv.Itoa(*r.ExperienceYears)
		}

		if err := cw.Write([]string{
			r.ID,
			r.Source,
			r.SourceID,
			r.SourceURL,
			r.Title,
			r.CompanyName,
			r.CompanyNormalized,
			r.FunctionCategory,
			r.SeniorityTier,
			r.LocationType,
			r.LocationRestriction,
			r.LocationState,
			formatFloat(r.HoursPerWeekMin),
			formatFloat(r.HoursPerWeekMax),
			r.HoursBucket,
			string(r.CompensationType),
			formatFloat(r.HourlyMin),
			formatFloat(r.HourlyMax),
			formatFloat(r.MonthlyMin),
			formatFloat(r.MonthlyMax),
			r.Currency,
			experience,
			formatDate(r.DatePosted),
			r.FirstSeen.UTC().Format(time.RFC3339),
			r.LastSeen.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatFloat leaves absent values empty and rounds to cents.
func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
