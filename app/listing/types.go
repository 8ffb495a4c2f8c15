package listing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

const DefaultCurrency = "USD"

const (
	FunctionOther    = "other"
	SeniorityUnknown = "unknown"
)

const (
	LocationRemote = "remote"
	LocationHybrid = "hybrid"
	LocationOnsite = "onsite"
)

const (
	RestrictionWorldwide     = "worldwide"
	RestrictionUSAOnly       = "usa_only"
	RestrictionStateSpecific = "state_specific"
	RestrictionTimezone      = "timezone"
	RestrictionCitySpecific  = "city_specific"
)

type CompensationType string

const (
	CompensationHourly       CompensationType = "hourly"
	CompensationMonthly      CompensationType = "monthly"
	CompensationAnnual       CompensationType = "annual"
	CompensationEquityOnly   CompensationType = "equity_only"
	CompensationNotDisclosed CompensationType = "not_disclosed"
)

// RawRecord is a single observation of a listing made by a source during one run.
type RawRecord struct {
	Source           string           `json:"source"`
	SourceID         string           `json:"source_id"`
	SourceURL        string           `json:"source_url,omitempty"`
	Title            string           `json:"title"`
	CompanyName      string           `json:"company_name"`
	CompanyURL       string           `json:"company_url,omitempty"`
	LocationRaw      string           `json:"location_raw"`
	DescriptionRaw   string           `json:"description_raw"`
	CompensationType CompensationType `json:"compensation_type,omitempty"`
	CompensationMin  *float64         `json:"compensation_min,omitempty"`
	CompensationMax  *float64         `json:"compensation_max,omitempty"`
	HoursMin         *float64         `json:"hours_min,omitempty"`
	HoursMax         *float64         `json:"hours_max,omitempty"`
	DatePosted       time.Time        `json:"date_posted"`
	ObservedAt       time.Time        `json:"observed_at"`
}

// CanonicalListing is a RawRecord enriched with classification and normalized compensation.
type CanonicalListing struct {
	RawRecord

	FunctionCategory    string `json:"function_category"`
	SeniorityTier       string `json:"seniority_tier"`
	LocationType        string `json:"location_type"`
	LocationRestriction string `json:"location_restriction"`
	LocationState       string `json:"location_state,omitempty"`

	HoursPerWeekMin *float64 `json:"hours_per_week_min,omitempty"`
	HoursPerWeekMax *float64 `json:"hours_per_week_max,omitempty"`
	HoursBucket     string   `json:"hours_bucket"`

	HourlyMin  *float64 `json:"hourly_min,omitempty"`
	HourlyMax  *float64 `json:"hourly_max,omitempty"`
	MonthlyMin *float64 `json:"monthly_min,omitempty"`
	MonthlyMax *float64 `json:"monthly_max,omitempty"`
	Currency   string   `json:"currency"`

	CompanyNormalized  string `json:"company_normalized"`
	ExperienceYears    *int   `json:"experience_years,omitempty"`
	DescriptionSnippet string `json:"description_snippet"`
}

// Fingerprint returns a stable hash of the canonical JSON encoding.
func (c CanonicalListing) Fingerprint() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HasCompensation reports whether any normalized value is present.
func (c CanonicalListing) HasCompensation() bool {
	return c.HourlyMin != nil || c.HourlyMax != nil || c.MonthlyMin != nil || c.MonthlyMax != nil
}

// Record is the persisted lifecycle entity, one per distinct (source, source_id).
type Record struct {
	ID string `json:"id"`
	CanonicalListing

	IsActive            bool       `json:"is_active"`
	FirstSeen           time.Time  `json:"first_seen"`
	LastSeen            time.Time  `json:"last_seen"`
	LastCheckedAt       time.Time  `json:"last_checked_at"`
	ConsecutiveAbsences int        `json:"consecutive_absences"`
	DeactivatedAt       *time.Time `json:"deactivated_at,omitempty"`
}

type Key struct {
	Source   string
	SourceID string
}

func (r RawRecord) Key() Key {
	return Key{Source: r.Source, SourceID: r.SourceID}
}

// Filter narrows listing queries. Empty fields match everything.
type Filter struct {
	Source           string
	FunctionCategory string
	SeniorityTier    string
	LocationType     string
	ActiveOnly       bool
	Limit            int
}

type CompensationSnapshot struct {
	SnapshotDate          time.Time `json:"snapshot_date"`
	FunctionCategory      string    `json:"function_category"`
	SeniorityTier         string    `json:"seniority_tier"`
	LocationType          string    `json:"location_type"`
	SampleSize            int       `json:"sample_size"`
	HourlyRateMinAvg      *float64  `json:"hourly_rate_min_avg"`
	HourlyRateMaxAvg      *float64  `json:"hourly_rate_max_avg"`
	HourlyRateMedian      *float64  `json:"hourly_rate_median"`
	MonthlyRetainerMinAvg *float64  `json:"monthly_retainer_min_avg"`
	MonthlyRetainerMaxAvg *float64  `json:"monthly_retainer_max_avg"`
	MonthlyRetainerMedian *float64  `json:"monthly_retainer_median"`
}

type ListingSnapshot struct {
	SnapshotDate       time.Time      `json:"snapshot_date"`
	Source             string         `json:"source"`
	TotalActive        int            `json:"total_active"`
	NewToday           int            `json:"new_today"`
	RemovedToday       int            `json:"removed_today"`
	ByFunction         map[string]int `json:"by_function"`
	BySeniority        map[string]int `json:"by_seniority"`
	ByLocationType     map[string]int `json:"by_location_type"`
	ByHoursBucket      map[string]int `json:"by_hours_bucket"`
	CompDisclosedCount int            `json:"comp_disclosed_count"`
	CompDisclosedPct   float64        `json:"comp_disclosed_pct"`
}

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

type RunLog struct {
	ID                  int64      `json:"id"`
	Source              string     `json:"source"`
	StartedAt           time.Time  `json:"started_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	Status              RunStatus  `json:"status"`
	ListingsFound       int        `json:"listings_found"`
	ListingsNew         int        `json:"listings_new"`
	ListingsUpdated     int        `json:"listings_updated"`
	ListingsReactivated int        `json:"listings_reactivated"`
	ListingsDeactivated int        `json:"listings_deactivated"`
	Error               string     `json:"error,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
