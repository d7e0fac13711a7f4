package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if len(cfg.Scraper.Profiles) < 3 {
		t.Errorf("expected at least 3 default profiles, got %d", len(cfg.Scraper.Profiles))
	}
	if len(cfg.Scraper.GiveUpStatuses) != 0 {
		t.Errorf("default should retry every status, got give_up_statuses %v", cfg.Scraper.GiveUpStatuses)
	}
	if cfg.Validation.Identifier.Length != 10 {
		t.Errorf("expected identifier length 10, got %d", cfg.Validation.Identifier.Length)
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricetracker.yaml")
	yaml := `
scraper:
  base_url: https://www.amazon.com
  max_attempts: 4
  delay_min: 1s
  delay_max: 2s
  give_up_statuses: [404, 410]
validation:
  title_min: 5
products:
  identifiers: [B08N5WRWNW, B07XJ8C8F5]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRICETRACKER_API_PORT", "9191")
	t.Setenv("PRICETRACKER_SCRAPER_BACKOFF_BASE", "500ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scraper.BaseURL != "https://www.amazon.com" {
		t.Errorf("base_url = %q", cfg.Scraper.BaseURL)
	}
	if cfg.Scraper.MaxAttempts != 4 {
		t.Errorf("max_attempts = %d, want 4", cfg.Scraper.MaxAttempts)
	}
	if cfg.Scraper.DelayMin != time.Second || cfg.Scraper.DelayMax != 2*time.Second {
		t.Errorf("delay range = [%v, %v]", cfg.Scraper.DelayMin, cfg.Scraper.DelayMax)
	}
	if !cfg.Scraper.GivesUpOn(410) || cfg.Scraper.GivesUpOn(403) {
		t.Errorf("give_up_statuses = %v, want [404 410]", cfg.Scraper.GiveUpStatuses)
	}
	if cfg.Validation.TitleMin != 5 {
		t.Errorf("title_min = %d, want 5", cfg.Validation.TitleMin)
	}
	if len(cfg.Products.Identifiers) != 2 {
		t.Errorf("identifiers = %v", cfg.Products.Identifiers)
	}
	if cfg.API.Port != 9191 {
		t.Errorf("api.port = %d, want env override 9191", cfg.API.Port)
	}
	if cfg.Scraper.BackoffBase != 500*time.Millisecond {
		t.Errorf("backoff_base = %v, want 500ms", cfg.Scraper.BackoffBase)
	}
	// Untouched keys keep their defaults.
	if cfg.Scraper.RequestTimeout != 15*time.Second {
		t.Errorf("request_timeout = %v, want default", cfg.Scraper.RequestTimeout)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad type", func(c *Config) { c.Scraper.Type = "ftp" }, "scraper.type"},
		{"bad base url", func(c *Config) { c.Scraper.BaseURL = "amazon.in" }, "scraper.base_url"},
		{"zero attempts", func(c *Config) { c.Scraper.MaxAttempts = 0 }, "scraper.max_attempts"},
		{"inverted delays", func(c *Config) { c.Scraper.DelayMin = 5 * time.Second; c.Scraper.DelayMax = time.Second }, "scraper.delay_min"},
		{"give up on success", func(c *Config) { c.Scraper.GiveUpStatuses = []int{200} }, "scraper.give_up_statuses"},
		{"no profiles", func(c *Config) { c.Scraper.Profiles = nil }, "scraper.profiles"},
		{"ceiling", func(c *Config) { c.Validation.PriceCeiling = 0 }, "validation.price_ceiling"},
		{"title bounds", func(c *Config) { c.Validation.TitleMin = 600 }, "validation.title_min"},
		{"rating bounds", func(c *Config) { c.Validation.RatingMax = -1 }, "validation.rating_max"},
		{"backend", func(c *Config) { c.Storage.Backend = "duckdb" }, "storage.backend"},
		{"postgres dsn", func(c *Config) { c.Storage.Backend = "postgres" }, "storage.postgres.dsn"},
		{"mirror same as primary", func(c *Config) { c.Storage.Mirrors = []string{"memory"} }, "storage.mirrors"},
		{"export format", func(c *Config) { c.Storage.Export.Enabled = true; c.Storage.Export.Format = "xml" }, "storage.export.format"},
		{"raw sink", func(c *Config) { c.Storage.RawPages.Sink = "s3" }, "storage.raw_pages.sink"},
		{"port", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
