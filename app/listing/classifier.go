package listing

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var stateAbbrevToken = regexp.MustCompile(`\b[A-Z]{2}\b`)

type Location struct {
	Type        string
	Restriction string
	State       string
}

// Classifier derives categorical fields from free text. It holds a private
// copy of its pattern tables and never mutates them, so one value can be
// shared between goroutines.
type Classifier struct {
	function   []Rule
	seniority  []Rule
	location   LocationPatterns
	states     map[string]string
	hours      []*regexp.Regexp
	experience []*regexp.Regexp
	suffixes   []string
}

func NewClassifier(p Patterns) (*Classifier, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	hours, _ := compileAll(p.Hours)
	experience, _ := compileAll(p.Experience)

	c := &Classifier{
		function:   lowerRules(p.Function),
		seniority:  lowerRules(p.Seniority),
		hours:      hours,
		experience: experience,
		suffixes:   lowerAll(p.CompanySuffixes),
		location: LocationPatterns{
			Remote:               lowerAll(p.Location.Remote),
			Hybrid:               lowerAll(p.Location.Hybrid),
			DescriptionRemote:    lowerAll(p.Location.DescriptionRemote),
			DescriptionHybrid:    lowerAll(p.Location.DescriptionHybrid),
			Worldwide:            lowerAll(p.Location.Worldwide),
			USA:                  lowerAll(p.Location.USA),
			Timezones:            lowerAll(p.Location.Timezones),
			DescriptionScanLimit: p.Location.DescriptionScanLimit,
		},
		states: make(map[string]string, len(p.Location.States)),
	}

	for _, s := range p.Location.States {
		state := State{Name: lower(s.Name), Abbrev: strings.ToUpper(s.Abbrev)}
		c.location.States = append(c.location.States, state)
		c.states[state.Abbrev] = state.Name
	}

	if c.location.DescriptionScanLimit <= 0 {
		c.location.DescriptionScanLimit = 500
	}

	return c, nil
}

// Function returns the first function category whose patterns occur in title.
func (c *Classifier) Function(title string) string {
	return firstMatch(c.function, lower(title), FunctionOther)
}

// Seniority returns the first seniority tier whose patterns occur in the
// space padded title.
func (c *Classifier) Seniority(title string) string {
	return firstMatch(c.seniority, " "+lower(title)+" ", SeniorityUnknown)
}

func (c *Classifier) Location(location, description string) Location {
	loc := lower(location)
	desc := lower(description)

	var locationType string
	switch {
	case containsAny(loc, c.location.Remote):
		locationType = LocationRemote
	case containsAny(loc, c.location.Hybrid):
		locationType = LocationHybrid
	case strings.TrimSpace(loc) == "":
		return Location{Type: LocationOnsite, Restriction: RestrictionCitySpecific}
	case containsAny(desc, c.location.DescriptionRemote):
		locationType = LocationRemote
	case containsAny(desc, c.location.DescriptionHybrid):
		locationType = LocationHybrid
	default:
		return Location{Type: LocationOnsite, Restriction: RestrictionCitySpecific}
	}

	if locationType != LocationRemote {
		return Location{Type: locationType, Restriction: RestrictionCitySpecific}
	}

	combined := " " + loc + " " + desc + " "

	if containsAny(combined, c.location.Worldwide) {
		return Location{Type: LocationRemote, Restriction: RestrictionWorldwide}
	}

	if state := c.findState(location, loc, desc); state != "" {
		return Location{Type: LocationRemote, Restriction: RestrictionStateSpecific, State: state}
	}

	if containsAny(combined, c.location.USA) {
		return Location{Type: LocationRemote, Restriction: RestrictionUSAOnly}
	}

	if containsAny(combined, c.location.Timezones) {
		return Location{Type: LocationRemote, Restriction: RestrictionTimezone}
	}

	return Location{Type: LocationRemote, Restriction: RestrictionWorldwide}
}

// findState looks for a full state name in the location or the head of the
// description, then for an upper-case two-letter state code in the location.
// The longest matching name wins so "west virginia" beats "virginia".
func (c *Classifier) findState(rawLocation, loc, desc string) string {
	head := truncateRunes(desc, c.location.DescriptionScanLimit)

	var best State
	for _, s := range c.location.States {
		if len(s.Name) <= len(best.Name) {
			continue
		}
		if strings.Contains(loc, s.Name) || strings.Contains(head, s.Name) {
			best = s
		}
	}
	if best.Abbrev != "" {
		return best.Abbrev
	}

	for _, token := range stateAbbrevToken.FindAllString(norm.NFKC.String(rawLocation), -1) {
		if _, ok := c.states[token]; ok {
			return token
		}
	}

	return ""
}

// Hours extracts weekly hours. A range yields (min, max), a single figure
// yields (n, n) when it falls within 1..50, and no match yields (nil, nil).
func (c *Classifier) Hours(text string) (*float64, *float64) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	t := lower(text)
	for _, re := range c.hours {
		m := re.FindStringSubmatch(t)
		if m == nil {
			continue
		}

		if len(m) >= 3 && m[2] != "" {
			lo, errLo := strconv.ParseFloat(m[1], 64)
			hi, errHi := strconv.ParseFloat(m[2], 64)
			if errLo == nil && errHi == nil {
				return Float(lo), Float(hi)
			}
			continue
		}

		if len(m) >= 2 && m[1] != "" {
			n, err := strconv.ParseFloat(m[1], 64)
			if err == nil && n >= 1 && n <= 50 {
				return Float(n), Float(n)
			}
		}
	}

	return nil, nil
}

func (c *Classifier) ExperienceYears(text string) *int {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	t := lower(text)
	for _, re := range c.experience {
		m := re.FindStringSubmatch(t)
		if len(m) < 2 {
			continue
		}
		years, err := strconv.Atoi(m[1])
		if err == nil && years >= 1 && years <= 50 {
			return &years
		}
	}

	return nil
}

var (
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// CompanyName lower-cases a company name, strips legal suffixes and
// punctuation so the same company matches across sources.
func (c *Classifier) CompanyName(name string) string {
	n := strings.TrimSpace(lower(name))
	if n == "" {
		return ""
	}

	for _, suffix := range c.suffixes {
		n = strings.TrimSuffix(n, suffix)
	}

	n = nonWord.ReplaceAllString(n, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(n, " "))
}

// HoursBucket groups weekly hours for reporting.
func HoursBucket(lo, hi *float64) string {
	var avg float64
	switch {
	case lo != nil && hi != nil:
		avg = (*lo + *hi) / 2
	case lo != nil:
		avg = *lo
	case hi != nil:
		avg = *hi
	default:
		return "not_specified"
	}

	switch {
	case avg <= 0:
		return "not_specified"
	case avg <= 10:
		return "1-10"
	case avg <= 20:
		return "10-20"
	case avg <= 30:
		return "20-30"
	default:
		return "30-40"
	}
}

func firstMatch(rules []Rule, text, fallback string) string {
	for _, r := range rules {
		if containsAny(text, r.Patterns) {
			return r.Category
		}
	}
	return fallback
}

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// lower applies compatibility normalization before case folding so that
// full-width letters and non-breaking spaces match plain patterns.
func lower(s string) string {
	return cases.Lower(language.Und).String(norm.NFKC.String(s))
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = lower(s)
	}
	return out
}

func lowerRules(in []Rule) []Rule {
	out := make([]Rule, len(in))
	for i, r := range in {
		out[i] = Rule{Category: r.Category, Patterns: lowerAll(r.Patterns)}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
