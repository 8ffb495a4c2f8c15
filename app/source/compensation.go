package source

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

var (
	compNumber = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([kK])?\b`)

	hourlyKeywords  = regexp.MustCompile(`\b(?:hours?|hourly|hrs?)\b`)
	monthlyKeywords = regexp.MustCompile(`\b(?:months?|monthly|mo)\b`)
	annualKeywords  = regexp.MustCompile(`\b(?:years?|yearly|yr|annual|annually|annum|salary)\b`)
	equityKeywords  = regexp.MustCompile(`\bequity\b`)

	hoursNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// ParseCompensation reads a free-text pay description such as "$85 - $100 an
// hour" or "$2.5K - $3K / mo.". The type comes from keywords when present and
// is otherwise inferred from magnitude: below 1000 is hourly, below 50000 is
// monthly, anything larger is annual. Text without numbers is not disclosed
// unless it mentions equity.
func ParseCompensation(text string) (listing.CompensationType, *float64, *float64) {
	if strings.TrimSpace(text) == "" {
		return listing.CompensationNotDisclosed, nil, nil
	}

	lowered := strings.ToLower(strings.ReplaceAll(text, ",", ""))

	matches := compNumber.FindAllStringSubmatch(lowered, 2)
	if len(matches) == 0 {
		if equityKeywords.MatchString(lowered) {
			return listing.CompensationEquityOnly, nil, nil
		}
		return listing.CompensationNotDisclosed, nil, nil
	}

	values := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return listing.CompensationNotDisclosed, nil, nil
		}
		if m[2] != "" {
			v *= 1000
		}
		values = append(values, v)
	}

	lo, hi := values[0], values[0]
	if len(values) > 1 {
		hi = values[1]
	}

	var compType listing.CompensationType
	switch {
	case hourlyKeywords.MatchString(lowered):
		compType = listing.CompensationHourly
	case monthlyKeywords.MatchString(lowered):
		compType = listing.CompensationMonthly
	case annualKeywords.MatchString(lowered):
		compType = listing.CompensationAnnual
	case hi < 1000:
		compType = listing.CompensationHourly
	case hi < 50000:
		compType = listing.CompensationMonthly
	default:
		compType = listing.CompensationAnnual
	}

	return compType, listing.Float(lo), listing.Float(hi)
}

// parseHours reads a declared hours field such as "10 - 15 hrs" or "20".
func parseHours(text string) (*float64, *float64) {
	matches := hoursNumber.FindAllString(text, 2)
	if len(matches) == 0 {
		return nil, nil
	}

	lo, err := strconv.ParseFloat(matches[0], 64)
	if err != nil || lo <= 0 {
		return nil, nil
	}
	hi := lo
	if len(matches) > 1 {
		if v, err := strconv.ParseFloat(matches[1], 64); err == nil && v >= lo {
			hi = v
		}
	}

	return listing.Float(lo), listing.Float(hi)
}
