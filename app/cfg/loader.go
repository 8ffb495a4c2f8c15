package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

const defaultDBFile = "fractional-comb.db"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type runCommand struct {
	Sources []string `long:"source" description:"Run only the named source (repeatable)"`
}

type snapshotCommand struct {
	Date string `long:"date" description:"Snapshot date as YYYY-MM-DD (defaults to today, UTC)"`
}

type serveCommand struct{}

type exportCommand struct {
	Date string `long:"date" description:"Compensation snapshot date as YYYY-MM-DD (defaults to the latest)"`
}

type rawCfg struct {
	// Database configuration
	DBDriver string `long:"db-driver" env:"DB_DRIVER" default:"sqlite" choice:"sqlite" choice:"pgx" description:"Database driver"`
	DBDSN    string `long:"db-dsn" env:"DB_DSN" description:"SQLite file path or Postgres URL (defaults to <data-dir>/fractional-comb.db)"`

	// Storage locations
	DataDir      string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory for the SQLite database and run locks"`
	SourcesDir   string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	PatternsFile string `long:"patterns-file" env:"PATTERNS_FILE" description:"YAML file overriding the built-in classification patterns"`
	ExportDir    string `long:"export-dir" env:"EXPORT_DIR" default:"./export" description:"Directory for CSV exports"`

	// Pipeline configuration
	GraceThreshold int    `long:"grace-threshold" env:"GRACE_THRESHOLD" default:"1" description:"Missed successful runs tolerated before a listing is deactivated"`
	MinSampleSize  int    `long:"min-sample-size" env:"MIN_SAMPLE_SIZE" default:"3" description:"Minimum cohort size published in compensation snapshots"`
	WorkerCount    int    `long:"worker-count" env:"WORKER_COUNT" default:"4" description:"Number of background workers for source processing"`
	Schedule       string `long:"schedule" env:"SCHEDULE" default:"@daily" description:"Cron schedule for source runs in serve mode"`
	RedisURL       string `long:"redis-url" env:"REDIS_URL" description:"Redis URL for the canonical listing cache (optional)"`

	// HTTP configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Fractional Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Run      runCommand      `command:"run" description:"Run every source once, then exit"`
	Snapshot snapshotCommand `command:"snapshot" description:"Write the daily compensation and listing snapshots"`
	Serve    serveCommand    `command:"serve" description:"Run the scheduler and the HTTP API"`
	Export   exportCommand   `command:"export" description:"Write active listings and snapshots as CSV"`
}

// Load parses the process arguments and environment.
func Load() (*Cfg, error) {
	cfg, err := Parse(os.Args[1:])
	if err != nil || cfg == nil {
		return cfg, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

// Parse builds a Cfg from args. It returns nil, nil when help was requested.
func Parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.SubcommandsOptional = true

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	command := CommandServe
	if parser.Active != nil {
		command = parser.Active.Name
	}

	cfg := &Cfg{
		Command:        command,
		DBDriver:       raw.DBDriver,
		DBDSN:          raw.DBDSN,
		DataDir:        raw.DataDir,
		SourcesDir:     raw.SourcesDir,
		PatternsFile:   raw.PatternsFile,
		ExportDir:      raw.ExportDir,
		GraceThreshold: raw.GraceThreshold,
		MinSampleSize:  raw.MinSampleSize,
		WorkerCount:    raw.WorkerCount,
		Schedule:       raw.Schedule,
		RedisURL:       raw.RedisURL,
		Port:           raw.Port,
		APIAccessKey:   raw.APIAccessKey,
		Sources:        raw.Run.Sources,
		SnapshotDate:   raw.Snapshot.Date,
		ExportDate:     raw.Export.Date,
		UserAgent:      raw.UserAgent,
		Timezone:       raw.Timezone,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	if cfg.DBDSN == "" && cfg.DBDriver == "sqlite" {
		cfg.DBDSN = filepath.Join(cfg.DataDir, defaultDBFile)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Cfg) Validate() error {
	if c.DBDSN == "" {
		return fmt.Errorf("db-dsn is required for driver %s", c.DBDriver)
	}
	if c.GraceThreshold < 0 {
		return fmt.Errorf("grace-threshold must be non-negative, got %d", c.GraceThreshold)
	}
	if c.MinSampleSize < 1 {
		return fmt.Errorf("min-sample-size must be at least 1, got %d", c.MinSampleSize)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker-count must be at least 1, got %d", c.WorkerCount)
	}
	for _, date := range []string{c.SnapshotDate, c.ExportDate} {
		if date == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return fmt.Errorf("invalid date %q: %w", date, err)
		}
	}
	return nil
}

// LockDir is where per-source run locks live.
func (c *Cfg) LockDir() string {
	return filepath.Join(c.DataDir, "locks")
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
		slog.Debug("Timezone configured", "timezone", timezone)
	}
	return nil
}
