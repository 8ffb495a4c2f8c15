package listing

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed default_patterns.yml
var defaultPatternsYAML []byte

// Rule maps a category to the substrings that select it.
type Rule struct {
	Category string   `yaml:"category"`
	Patterns []string `yaml:"patterns"`
}

type State struct {
	Name   string `yaml:"name"`
	Abbrev string `yaml:"abbrev"`
}

// LocationPatterns drive the location classifier. The description lists are
// consulted only when the location text names neither remote nor hybrid.
type LocationPatterns struct {
	Remote               []string `yaml:"remote"`
	Hybrid               []string `yaml:"hybrid"`
	DescriptionRemote    []string `yaml:"description_remote"`
	DescriptionHybrid    []string `yaml:"description_hybrid"`
	Worldwide            []string `yaml:"worldwide"`
	USA                  []string `yaml:"usa"`
	Timezones            []string `yaml:"timezones"`
	States               []State  `yaml:"states"`
	DescriptionScanLimit int      `yaml:"description_scan_limit"`
}

// Patterns holds every ordered table used by the classifiers. Values are
// treated as immutable once handed to NewCanonicalizer.
type Patterns struct {
	Function        []Rule           `yaml:"function"`
	Seniority       []Rule           `yaml:"seniority"`
	Location        LocationPatterns `yaml:"location"`
	Hours           []string         `yaml:"hours"`
	Experience      []string         `yaml:"experience"`
	CompanySuffixes []string         `yaml:"company_suffixes"`
}

func DefaultPatterns() (Patterns, error) {
	return ParsePatterns(defaultPatternsYAML)
}

// LoadPatterns reads a pattern file. An empty path yields the built-in tables.
func LoadPatterns(path string) (Patterns, error) {
	if path == "" {
		return DefaultPatterns()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Patterns{}, fmt.Errorf("failed to read patterns file %s: %w", path, err)
	}

	return ParsePatterns(data)
}

func ParsePatterns(data []byte) (Patterns, error) {
	var p Patterns
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Patterns{}, fmt.Errorf("failed to parse patterns: %w", err)
	}

	if p.Location.DescriptionScanLimit <= 0 {
		p.Location.DescriptionScanLimit = 500
	}

	if err := p.Validate(); err != nil {
		return Patterns{}, err
	}

	return p, nil
}

func (p Patterns) Validate() error {
	if err := validateRules("function", p.Function); err != nil {
		return err
	}
	if err := validateRules("seniority", p.Seniority); err != nil {
		return err
	}

	if len(p.Location.Remote) == 0 || len(p.Location.Hybrid) == 0 {
		return fmt.Errorf("location patterns must define remote and hybrid keywords")
	}

	for _, s := range p.Location.States {
		if s.Name == "" || s.Abbrev == "" {
			return fmt.Errorf("location state entries need both name and abbrev")
		}
	}

	if _, err := compileAll(p.Hours); err != nil {
		return fmt.Errorf("invalid hours pattern: %w", err)
	}
	if _, err := compileAll(p.Experience); err != nil {
		return fmt.Errorf("invalid experience pattern: %w", err)
	}

	return nil
}

// Fingerprint identifies the pattern tables. Canonical output is only
// reusable between runs with the same fingerprint.
func (p Patterns) Fingerprint() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func validateRules(table string, rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%s patterns are empty", table)
	}

	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r.Category == "" {
			return fmt.Errorf("%s rule %d has no category", table, i)
		}
		if seen[r.Category] {
			return fmt.Errorf("%s category %q is listed twice", table, r.Category)
		}
		seen[r.Category] = true

		if len(r.Patterns) == 0 {
			return fmt.Errorf("%s category %q has no patterns", table, r.Category)
		}
		for _, pattern := range r.Patterns {
			if pattern == "" {
				return fmt.Errorf("%s category %q has an empty pattern", table, r.Category)
			}
		}
	}

	return nil
}

func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", expr, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
