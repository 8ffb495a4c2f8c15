package snapshot

import (
	"sort"
	"time"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

const DefaultMinSampleSize = 3

type cohortKey struct {
	function  string
	seniority string
	location  string
}

type cohort struct {
	size                   int
	hourlyMins, hourlyMaxs []float64
	monthMins, monthMaxs   []float64
}

// Aggregator produces compensation benchmarks per (function, seniority,
// location type) cohort.
type Aggregator struct {
	minSampleSize int
}

func NewAggregator(minSampleSize int) *Aggregator {
	if minSampleSize <= 0 {
		minSampleSize = DefaultMinSampleSize
	}
	return &Aggregator{minSampleSize: minSampleSize}
}

// Run groups active records into cohorts and summarizes their normalized
// compensation. Only records with at least one normalized value count towards
// a cohort, and cohorts smaller than the minimum sample size are dropped.
func (a *Aggregator) Run(date time.Time, records []listing.Record) []listing.CompensationSnapshot {
	day := Day(date)
	cohorts := make(map[cohortKey]*cohort)

	for _, r := range records {
		if !r.IsActive || !r.HasCompensation() {
			continue
		}

		key := cohortKey{function: r.FunctionCategory, seniority: r.SeniorityTier, location: r.LocationType}
		c, ok := cohorts[key]
		if !ok {
			c = &cohort{}
			cohorts[key] = c
		}

		c.size++
		c.hourlyMins = appendPresent(c.hourlyMins, r.HourlyMin)
		c.hourlyMaxs = appendPresent(c.hourlyMaxs, r.HourlyMax)
		c.monthMins = appendPresent(c.monthMins, r.MonthlyMin)
		c.monthMaxs = appendPresent(c.monthMaxs, r.MonthlyMax)
	}

	keys := make([]cohortKey, 0, len(cohorts))
	for k, c := range cohorts {
		if c.size >= a.minSampleSize {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].function != keys[j].function {
			return keys[i].function < keys[j].function
		}
		if keys[i].seniority != keys[j].seniority {
			return keys[i].seniority < keys[j].seniority
		}
		return keys[i].location < keys[j].location
	})

	out := make([]listing.CompensationSnapshot, 0, len(keys))
	for _, k := range keys {
		c := cohorts[k]
		out = append(out, listing.CompensationSnapshot{
			SnapshotDate:          day,
			FunctionCategory:      k.function,
			SeniorityTier:         k.seniority,
			LocationType:          k.location,
			SampleSize:            c.size,
			HourlyRateMinAvg:      mean(c.hourlyMins),
			HourlyRateMaxAvg:      mean(c.hourlyMaxs),
			HourlyRateMedian:      median(c.hourlyMins),
			MonthlyRetainerMinAvg: mean(c.monthMins),
			MonthlyRetainerMaxAvg: mean(c.monthMaxs),
			MonthlyRetainerMedian: median(c.monthMins),
		})
	}

	return out
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func appendPresent(values []float64, v *float64) []float64 {
	if v == nil {
		return values
	}
	return append(values, *v)
}

func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return listing.Float(sum / float64(len(values)))
}

func median(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return listing.Float(sorted[mid])
	}
	return listing.Float((sorted[mid-1] + sorted[mid]) / 2)
}
