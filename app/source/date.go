package source

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	daysAgo   = regexp.MustCompile(`(\d+)\+?\s*days?\s*ago`)
	weeksAgo  = regexp.MustCompile(`(\d+)\+?\s*weeks?\s*ago`)
	monthsAgo = regexp.MustCompile(`(\d+)\+?\s*months?\s*ago`)
	hoursAgo  = regexp.MustCompile(`(\d+)\+?\s*(?:hours?|hrs?)\s*ago`)
	postedPfx = regexp.MustCompile(`(?i)^(?:posted|added|published)\s*(?:on\s*)?:?\s*`)
)

// ParseDatePosted interprets relative phrases ("just posted", "3 days ago",
// "30+ days ago") against now and absolute dates in most common layouts.
// The second return value is false when nothing could be parsed.
func ParseDatePosted(text string, now time.Time) (time.Time, bool) {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return time.Time{}, false
	}
	now = now.UTC()

	switch {
	case strings.Contains(lowered, "just") || strings.Contains(lowered, "today"):
		return now, true
	case strings.Contains(lowered, "yesterday"):
		return now.AddDate(0, 0, -1), true
	}

	if n, ok := relative(daysAgo, lowered); ok {
		return now.AddDate(0, 0, -n), true
	}
	if n, ok := relative(weeksAgo, lowered); ok {
		return now.AddDate(0, 0, -7*n), true
	}
	if n, ok := relative(monthsAgo, lowered); ok {
		return now.AddDate(0, -n, 0), true
	}
	if n, ok := relative(hoursAgo, lowered); ok {
		return now.Add(-time.Duration(n) * time.Hour), true
	}

	absolute := postedPfx.ReplaceAllString(strings.TrimSpace(text), "")
	if t, err := dateparse.ParseIn(absolute, time.UTC); err == nil {
		return t.UTC(), true
	}

	return time.Time{}, false
}

func relative(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
