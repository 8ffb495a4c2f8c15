package snapshot

import (
	"math"
	"testing"
	"time"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

func record(id, function, seniority, location string, hourlyMin, hourlyMax float64, active bool) listing.Record {
	monthly := listing.DefaultHoursPerWeek * listing.WeeksPerMonth
	return listing.Record{
		ID: id,
		CanonicalListing: listing.CanonicalListing{
			RawRecord: listing.RawRecord{
				Source:           "boardA",
				SourceID:         id,
				CompensationType: listing.CompensationHourly,
			},
			FunctionCategory: function,
			SeniorityTier:    seniority,
			LocationType:     location,
			HourlyMin:        listing.Float(hourlyMin),
			HourlyMax:        listing.Float(hourlyMax),
			MonthlyMin:       listing.Float(hourlyMin * monthly),
			MonthlyMax:       listing.Float(hourlyMax * monthly),
		},
		IsActive: active,
	}
}

func expectFloat(t *testing.T, name string, got *float64, expected float64) {
	t.Helper()
	if got == nil {
		t.Errorf("Expected %s = %v, got nil", name, expected)
		return
	}
	if math.Abs(*got-expected) > 1e-6 {
		t.Errorf("Expected %s = %v, got %v", name, expected, *got)
	}
}

func TestAggregator_SuppressesSmallCohorts(t *testing.T) {
	agg := NewAggregator(DefaultMinSampleSize)

	records := []listing.Record{
		record("1", "finance", "c_level", "remote", 100, 150, true),
		record("2", "finance", "c_level", "remote", 200, 250, true),
	}

	rows := agg.Run(time.Now(), records)
	if len(rows) != 0 {
		t.Errorf("Expected cohort of 2 to be suppressed, got %d rows", len(rows))
	}
}

func TestAggregator_CohortStatistics(t *testing.T) {
	agg := NewAggregator(DefaultMinSampleSize)
	date := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

	records := []listing.Record{
		record("1", "finance", "c_level", "remote", 100, 150, true),
		record("2", "finance", "c_level", "remote", 200, 250, true),
		record("3", "finance", "c_level", "remote", 150, 200, true),
		record("4", "finance", "c_level", "remote", 900, 900, false),
	}

	rows := agg.Run(date, records)
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if row.SampleSize != 3 {
		t.Errorf("Expected sample size 3, got %d", row.SampleSize)
	}
	if row.FunctionCategory != "finance" || row.SeniorityTier != "c_level" || row.LocationType != "remote" {
		t.Errorf("Unexpected cohort %s/%s/%s", row.FunctionCategory, row.SeniorityTier, row.LocationType)
	}
	if !row.SnapshotDate.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected snapshot date truncated to day, got %v", row.SnapshotDate)
	}

	monthly := listing.DefaultHoursPerWeek * listing.WeeksPerMonth
	expectFloat(t, "hourly_rate_min_avg", row.HourlyRateMinAvg, 150)
	expectFloat(t, "hourly_rate_max_avg", row.HourlyRateMaxAvg, 200)
	expectFloat(t, "hourly_rate_median", row.HourlyRateMedian, 150)
	expectFloat(t, "monthly_retainer_min_avg", row.MonthlyRetainerMinAvg, 150*monthly)
	expectFloat(t, "monthly_retainer_max_avg", row.MonthlyRetainerMaxAvg, 200*monthly)
	expectFloat(t, "monthly_retainer_median", row.MonthlyRetainerMedian, 150*monthly)
}

func TestAggregator_EvenMedian(t *testing.T) {
	agg := NewAggregator(DefaultMinSampleSize)

	records := []listing.Record{
		record("1", "sales", "vp", "hybrid", 100, 100, true),
		record("2", "sales", "vp", "hybrid", 200, 200, true),
		record("3", "sales", "vp", "hybrid", 300, 300, true),
		record("4", "sales", "vp", "hybrid", 400, 400, true),
	}

	rows := agg.Run(time.Now(), records)
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	expectFloat(t, "hourly_rate_median", rows[0].HourlyRateMedian, 250)
}

func TestAggregator_SkipsUndisclosed(t *testing.T) {
	agg := NewAggregator(DefaultMinSampleSize)

	undisclosed := listing.Record{
		CanonicalListing: listing.CanonicalListing{
			FunctionCategory: "finance",
			SeniorityTier:    "c_level",
			LocationType:     "remote",
		},
		IsActive: true,
	}

	records := []listing.Record{
		record("1", "finance", "c_level", "remote", 100, 150, true),
		record("2", "finance", "c_level", "remote", 200, 250, true),
		undisclosed,
		undisclosed,
	}

	if rows := agg.Run(time.Now(), records); len(rows) != 0 {
		t.Errorf("Expected undisclosed records not to count towards the sample, got %d rows", len(rows))
	}
}

func TestAggregator_SeparateUnits(t *testing.T) {
	agg := NewAggregator(DefaultMinSampleSize)

	records := []listing.Record{
		record("1", "data", "director", "remote", 100, 100, true),
		record("2", "data", "director", "remote", 200, 200, true),
		record("3", "data", "director", "remote", 300, 300, true),
	}
	records[2].MonthlyMin = nil
	records[2].MonthlyMax = nil

	rows := agg.Run(time.Now(), records)
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}

	monthly := listing.DefaultHoursPerWeek * listing.WeeksPerMonth
	expectFloat(t, "hourly_rate_min_avg", rows[0].HourlyRateMinAvg, 200)
	expectFloat(t, "monthly_retainer_min_avg", rows[0].MonthlyRetainerMinAvg, 150*monthly)
}

func TestAggregator_DeterministicOrder(t *testing.T) {
	agg := NewAggregator(1)

	records := []listing.Record{
		record("1", "sales", "vp", "remote", 100, 100, true),
		record("2", "finance", "vp", "remote", 100, 100, true),
		record("3", "finance", "director", "remote", 100, 100, true),
	}

	rows := agg.Run(time.Now(), records)
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}

	expected := []string{"finance/director", "finance/vp", "sales/vp"}
	for i, row := range rows {
		if got := row.FunctionCategory + "/" + row.SeniorityTier; got != expected[i] {
			t.Errorf("Row %d: expected %s, got %s", i, expected[i], got)
		}
	}
}
