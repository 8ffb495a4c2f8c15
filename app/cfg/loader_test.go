package cfg

import (
	"path/filepath"
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]string{"--data-dir", "/tmp/fc"})
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if cfg.Command != CommandServe {
		t.Errorf("Expected default command '%s', got '%s'", CommandServe, cfg.Command)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("Expected driver 'sqlite', got '%s'", cfg.DBDriver)
	}
	expectedDSN := filepath.Join("/tmp/fc", "fractional-comb.db")
	if cfg.DBDSN != expectedDSN {
		t.Errorf("Expected DSN '%s', got '%s'", expectedDSN, cfg.DBDSN)
	}
	if cfg.GraceThreshold != 1 {
		t.Errorf("Expected grace threshold 1, got %d", cfg.GraceThreshold)
	}
	if cfg.MinSampleSize != 3 {
		t.Errorf("Expected min sample size 3, got %d", cfg.MinSampleSize)
	}
	if cfg.Schedule != "@daily" {
		t.Errorf("Expected schedule '@daily', got '%s'", cfg.Schedule)
	}
	if cfg.LockDir() != filepath.Join("/tmp/fc", "locks") {
		t.Errorf("Unexpected lock dir '%s'", cfg.LockDir())
	}
}

func TestParse_Commands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		command string
	}{
		{"run", []string{"run"}, CommandRun},
		{"snapshot", []string{"snapshot"}, CommandSnapshot},
		{"serve", []string{"serve"}, CommandServe},
		{"export", []string{"export"}, CommandExport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(tt.args)
			if err != nil {
				t.Fatalf("Failed to parse: %v", err)
			}
			if cfg.Command != tt.command {
				t.Errorf("Expected command '%s', got '%s'", tt.command, cfg.Command)
			}
		})
	}
}

func TestParse_CommandOptions(t *testing.T) {
	cfg, err := Parse([]string{"run", "--source", "board", "--source", "feed"})
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if len(cfg.Sources) != 2 || cfg.Sources[0] != "board" || cfg.Sources[1] != "feed" {
		t.Errorf("Expected sources [board feed], got %v", cfg.Sources)
	}

	cfg, err = Parse([]string{"snapshot", "--date", "2026-03-02"})
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if cfg.SnapshotDate != "2026-03-02" {
		t.Errorf("Expected snapshot date '2026-03-02', got '%s'", cfg.SnapshotDate)
	}

	cfg, err = Parse([]string{"export", "--date", "2026-03-01"})
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if cfg.ExportDate != "2026-03-01" || cfg.SnapshotDate != "" {
		t.Errorf("Expected export date '2026-03-01' only, got '%s' and '%s'", cfg.ExportDate, cfg.SnapshotDate)
	}
}

func TestParse_Environment(t *testing.T) {
	t.Setenv("GRACE_THRESHOLD", "3")
	t.Setenv("API_ACCESS_KEY", "secret")

	cfg, err := Parse([]string{"serve"})
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if cfg.GraceThreshold != 3 {
		t.Errorf("Expected grace threshold 3, got %d", cfg.GraceThreshold)
	}
	if cfg.APIAccessKey != "secret" {
		t.Errorf("Expected API key 'secret', got '%s'", cfg.APIAccessKey)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"postgres without dsn", []string{"--db-driver", "pgx"}},
		{"unknown driver", []string{"--db-driver", "mysql"}},
		{"negative grace", []string{"--grace-threshold", "-1"}},
		{"zero sample size", []string{"--min-sample-size", "0"}},
		{"zero workers", []string{"--worker-count", "0"}},
		{"bad snapshot date", []string{"snapshot", "--date", "March 2"}},
		{"bad export date", []string{"export", "--date", "2026/03/01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.args); err == nil {
				t.Errorf("Expected error for args %v", tt.args)
			}
		})
	}
}
