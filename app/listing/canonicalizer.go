package listing

import (
	"strings"
)

const descriptionSnippetLength = 500

// Canonicalizer turns raw observations into canonical listings. It has no
// mutable state and is safe for concurrent use.
type Canonicalizer struct {
	classifier *Classifier
}

func NewCanonicalizer(p Patterns) (*Canonicalizer, error) {
	classifier, err := NewClassifier(p)
	if err != nil {
		return nil, err
	}
	return &Canonicalizer{classifier: classifier}, nil
}

func (c *Canonicalizer) Run(raw RawRecord) CanonicalListing {
	raw.DatePosted = raw.DatePosted.UTC()
	raw.ObservedAt = raw.ObservedAt.UTC()

	location := c.classifier.Location(raw.LocationRaw, raw.DescriptionRaw)
	hoursMin, hoursMax := c.resolveHours(raw)
	comp := NormalizeCompensation(raw.CompensationType, raw.CompensationMin, raw.CompensationMax, hoursMin, hoursMax)

	return CanonicalListing{
		RawRecord:           raw,
		FunctionCategory:    c.classifier.Function(raw.Title),
		SeniorityTier:       c.classifier.Seniority(raw.Title),
		LocationType:        location.Type,
		LocationRestriction: location.Restriction,
		LocationState:       location.State,
		HoursPerWeekMin:     hoursMin,
		HoursPerWeekMax:     hoursMax,
		HoursBucket:         HoursBucket(hoursMin, hoursMax),
		HourlyMin:           comp.HourlyMin,
		HourlyMax:           comp.HourlyMax,
		MonthlyMin:          comp.MonthlyMin,
		MonthlyMax:          comp.MonthlyMax,
		Currency:            DefaultCurrency,
		CompanyNormalized:   c.classifier.CompanyName(raw.CompanyName),
		ExperienceYears:     c.classifier.ExperienceYears(raw.DescriptionRaw),
		DescriptionSnippet:  truncateRunes(strings.TrimSpace(raw.DescriptionRaw), descriptionSnippetLength),
	}
}

// RunAll canonicalizes a batch, preserving order.
func (c *Canonicalizer) RunAll(raws []RawRecord) []CanonicalListing {
	out := make([]CanonicalListing, len(raws))
	for i, raw := range raws {
		out[i] = c.Run(raw)
	}
	return out
}

// resolveHours prefers hours declared by the source, then hours found in the
// description, then hours mentioned in the title.
func (c *Canonicalizer) resolveHours(raw RawRecord) (*float64, *float64) {
	if raw.HoursMin != nil || raw.HoursMax != nil {
		lo, hi := raw.HoursMin, raw.HoursMax
		if lo == nil {
			lo = hi
		}
		if hi == nil {
			hi = lo
		}
		return Float(*lo), Float(*hi)
	}

	if lo, hi := c.classifier.Hours(raw.DescriptionRaw); lo != nil {
		return lo, hi
	}

	return c.classifier.Hours(raw.Title)
}
