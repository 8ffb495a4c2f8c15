package source

import (
	"context"

	"github.com/lysyi3m/fractional-comb/app/listing"
)

// Adapter fetches the current listings of one source. A non-nil error marks
// the whole run as failed.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]listing.RawRecord, error)
}

type Kind string

const (
	KindFeed  Kind = "feed"
	KindBoard Kind = "board"
)

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	Kind     Kind           `yaml:"kind"`
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
	Fields   FieldLabels    `yaml:"fields"`
	Board    BoardSelectors `yaml:"board"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled        bool    `yaml:"enabled"`
	MaxItems       int     `yaml:"max_items"`
	Timeout        int     `yaml:"timeout"`    // seconds
	RateLimit      float64 `yaml:"rate_limit"` // requests per second per host
	Burst          int     `yaml:"burst"`
	FetchDetails   bool    `yaml:"fetch_details"`   // fetch each listing page for the full description
	TitleSeparator string  `yaml:"title_separator"` // splits "Company: Title" feed titles
}

// FieldLabels name the "Label: value" lines a feed item description uses for
// structured fields.
type FieldLabels struct {
	Location     string `yaml:"location"`
	Compensation string `yaml:"compensation"`
	Hours        string `yaml:"hours"`
	Company      string `yaml:"company"`
}

// BoardSelectors are CSS selectors evaluated against a job board page. Every
// selector except Item is relative to the matched item.
type BoardSelectors struct {
	Item         string `yaml:"item"`
	Title        string `yaml:"title"`
	Company      string `yaml:"company"`
	CompanyURL   string `yaml:"company_url"`
	Location     string `yaml:"location"`
	Compensation string `yaml:"compensation"`
	Hours        string `yaml:"hours"`
	Date         string `yaml:"date"`
	Link         string `yaml:"link"`
	Description  string `yaml:"description"`
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
