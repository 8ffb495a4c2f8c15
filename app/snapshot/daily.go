package snapshot

import (
	"sort"
	"time"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

const AllSources = "all"

// DailyCounts summarizes the listing population on the given day.
func DailyCounts(date time.Time, records []listing.Record) listing.ListingSnapshot {
	day := Day(date)
	next := day.AddDate(0, 0, 1)

	s := listing.ListingSnapshot{
		SnapshotDate:   day,
		Source:         AllSources,
		ByFunction:     make(map[string]int),
		BySeniority:    make(map[string]int),
		ByLocationType: make(map[string]int),
		ByHoursBucket:  make(map[string]int),
	}

	for _, r := range records {
		if within(r.FirstSeen, day, next) {
			s.NewToday++
		}
		if r.DeactivatedAt != nil && within(*r.DeactivatedAt, day, next) {
			s.RemovedToday++
		}

		if !r.IsActive {
			continue
		}

		s.TotalActive++
		s.ByFunction[orDefault(r.FunctionCategory, listing.FunctionOther)]++
		s.BySeniority[orDefault(r.SeniorityTier, listing.SeniorityUnknown)]++
		s.ByLocationType[orDefault(r.LocationType, "unknown")]++
		s.ByHoursBucket[orDefault(r.HoursBucket, "not_specified")]++

		if r.CompensationType != "" && r.CompensationType != listing.CompensationNotDisclosed {
			s.CompDisclosedCount++
		}
	}

	if s.TotalActive > 0 {
		s.CompDisclosedPct = float64(s.CompDisclosedCount) / float64(s.TotalActive) * 100
	}

	return s
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type WeeklySummary struct {
	WeekEnding          time.Time       `json:"week_ending"`
	TotalActive         int             `json:"total_active"`
	WoWChange           int             `json:"wow_change"`
	WoWChangePct        float64         `json:"wow_change_pct"`
	NewThisWeek         int             `json:"new_this_week"`
	RemovedThisWeek     int             `json:"removed_this_week"`
	TopFunctions        []CategoryCount `json:"top_functions"`
	CompTransparencyPct float64         `json:"comp_transparency_pct"`
	ByLocationType      map[string]int  `json:"by_location_type"`
}

// Weekly compares the earliest and latest daily snapshots. It returns nil
// when there are none.
func Weekly(snapshots []listing.ListingSnapshot) *WeeklySummary {
	if len(snapshots) == 0 {
		return nil
	}

	sorted := append([]listing.ListingSnapshot(nil), snapshots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SnapshotDate.Before(sorted[j].SnapshotDate) })

	earliest := sorted[0]
	latest := sorted[len(sorted)-1]

	summary := &WeeklySummary{
		WeekEnding:          latest.SnapshotDate,
		TotalActive:         latest.TotalActive,
		WoWChange:           latest.TotalActive - earliest.TotalActive,
		CompTransparencyPct: latest.CompDisclosedPct,
		ByLocationType:      latest.ByLocationType,
	}

	if earliest.TotalActive > 0 {
		summary.WoWChangePct = float64(summary.WoWChange) / float64(earliest.TotalActive) * 100
	}

	for _, s := range sorted {
		summary.NewThisWeek += s.NewToday
		summary.RemovedThisWeek += s.RemovedToday
	}

	for category, count := range latest.ByFunction {
		summary.TopFunctions = append(summary.TopFunctions, CategoryCount{Category: category, Count: count})
	}
	sort.Slice(summary.TopFunctions, func(i, j int) bool {
		a, b := summary.TopFunctions[i], summary.TopFunctions[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})
	if len(summary.TopFunctions) > 5 {
		summary.TopFunctions = summary.TopFunctions[:5]
	}

	return summary
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
