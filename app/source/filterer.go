package source

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

var validFilterFields = map[string]bool{
	"title":       true,
	"company":     true,
	"location":    true,
	"description": true,
	"url":         true,
}

// Filter drops records rejected by the source's include/exclude rules. The
// order of the remaining records is kept.
func Filter(records []listing.RawRecord, filters []ConfigFilter) ([]listing.RawRecord, int) {
	if len(filters) == 0 {
		return records, 0
	}

	kept := make([]listing.RawRecord, 0, len(records))
	dropped := 0
	for _, record := range records {
		if excluded, reason := applyFilters(record, filters); excluded {
			slog.Debug("Listing filtered", "source", record.Source, "source_id", record.SourceID, "reason", reason)
			dropped++
			continue
		}
		kept = append(kept, record)
	}

	return kept, dropped
}

func applyFilters(record listing.RawRecord, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := fieldValue(record, filter.Field)

		for _, exclude := range filter.Excludes {
			if matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func fieldValue(record listing.RawRecord, field string) string {
	switch field {
	case "title":
		return record.Title
	case "company":
		return record.CompanyName
	case "location":
		return record.LocationRaw
	case "description":
		return record.DescriptionRaw
	case "url":
		return record.SourceURL
	default:
		return ""
	}
}
