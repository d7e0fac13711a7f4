package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	s := cfg.Scraper
	if s.Type != "http" && s.Type != "browser" {
		return fmt.Errorf("scraper.type must be 'http' or 'browser', got %q", s.Type)
	}
	if err := ValidateURL(s.BaseURL); err != nil {
		return fmt.Errorf("scraper.base_url: %w", err)
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("scraper.request_timeout must be > 0")
	}
	if s.DelayMin < 0 || s.DelayMax < s.DelayMin {
		return fmt.Errorf("scraper.delay_min must be >= 0 and <= scraper.delay_max")
	}
	if s.ItemDelay < 0 {
		return fmt.Errorf("scraper.item_delay must be >= 0")
	}
	if s.MaxAttempts < 1 {
		return fmt.Errorf("scraper.max_attempts must be >= 1, got %d", s.MaxAttempts)
	}
	if s.BackoffBase < 0 || (s.BackoffMax > 0 && s.BackoffMax < s.BackoffBase) {
		return fmt.Errorf("scraper.backoff_base must be >= 0 and <= scraper.backoff_max")
	}
	if len(s.Profiles) == 0 {
		return fmt.Errorf("scraper.profiles must not be empty")
	}
	for i, p := range s.Profiles {
		if p.UserAgent == "" {
			return fmt.Errorf("scraper.profiles[%d].user_agent must not be empty", i)
		}
	}
	if s.MaxBodySize <= 0 {
		return fmt.Errorf("scraper.max_body_size must be > 0")
	}
	if s.MaxRedirects < 0 {
		return fmt.Errorf("scraper.max_redirects must be >= 0")
	}
	for _, code := range s.GiveUpStatuses {
		if code < 400 || code > 599 {
			return fmt.Errorf("scraper.give_up_statuses: %d is not an error status", code)
		}
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		if cfg.Proxy.Cooldown < 0 {
			return fmt.Errorf("proxy.cooldown must be >= 0")
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	val := cfg.Validation
	if val.PriceCeiling <= 0 {
		return fmt.Errorf("validation.price_ceiling must be > 0")
	}
	if val.TitleMin < 0 || val.TitleMax < val.TitleMin || val.TitleMax < 4 {
		return fmt.Errorf("validation.title_min must be >= 0 and validation.title_max must be >= max(title_min, 4)")
	}
	if val.SellerMax < 4 {
		return fmt.Errorf("validation.seller_max must be >= 4, got %d", val.SellerMax)
	}
	if val.RatingMax < val.RatingMin {
		return fmt.Errorf("validation.rating_max must be >= validation.rating_min")
	}
	if val.DiscountTolerance < 0 {
		return fmt.Errorf("validation.discount_tolerance must be >= 0")
	}
	if val.ClockSkew < 0 || val.Freshness < 0 {
		return fmt.Errorf("validation.clock_skew and validation.freshness must be >= 0")
	}
	if val.Identifier.Length < 1 {
		return fmt.Errorf("validation.identifier.length must be >= 1, got %d", val.Identifier.Length)
	}

	validBackends := map[string]bool{"memory": true, "postgres": true, "mongo": true}
	if !validBackends[cfg.Storage.Backend] {
		return fmt.Errorf("storage.backend %q is not supported (valid: memory, postgres, mongo)", cfg.Storage.Backend)
	}
	for _, m := range cfg.Storage.Mirrors {
		if !validBackends[m] || m == cfg.Storage.Backend {
			return fmt.Errorf("storage.mirrors entry %q must be a different supported backend", m)
		}
	}
	if usesBackend(cfg, "postgres") && cfg.Storage.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn must be set when postgres is used")
	}
	if usesBackend(cfg, "mongo") && (cfg.Storage.Mongo.URI == "" || cfg.Storage.Mongo.Database == "") {
		return fmt.Errorf("storage.mongo.uri and storage.mongo.database must be set when mongo is used")
	}
	if cfg.Storage.CacheSize < 0 {
		return fmt.Errorf("storage.cache_size must be >= 0")
	}

	validFormats := map[string]bool{"json": true, "jsonl": true, "csv": true}
	if cfg.Storage.Export.Enabled && !validFormats[cfg.Storage.Export.Format] {
		return fmt.Errorf("storage.export.format %q is not supported (valid: json, jsonl, csv)", cfg.Storage.Export.Format)
	}
	switch cfg.Storage.RawPages.Sink {
	case "", "none", "dir", "redis":
	default:
		return fmt.Errorf("storage.raw_pages.sink must be none, dir or redis, got %q", cfg.Storage.RawPages.Sink)
	}

	if cfg.Products.ScrapeInterval < 0 {
		return fmt.Errorf("products.scrape_interval must be >= 0")
	}

	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port must be 1-65535, got %d", cfg.API.Port)
	}

	if cfg.Monitor.AlertThresholdPct < 0 {
		return fmt.Errorf("monitor.alert_threshold_pct must be >= 0")
	}
	if cfg.Monitor.AnomalyRatio <= 0 || cfg.Monitor.AnomalyRatio >= 1 {
		return fmt.Errorf("monitor.anomaly_ratio must be in (0, 1), got %v", cfg.Monitor.AnomalyRatio)
	}
	if cfg.Monitor.WebhookURL != "" {
		if err := ValidateURL(cfg.Monitor.WebhookURL); err != nil {
			return fmt.Errorf("monitor.webhook_url: %w", err)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

func usesBackend(cfg *Config, name string) bool {
	if cfg.Storage.Backend == name {
		return true
	}
	for _, m := range cfg.Storage.Mirrors {
		if m == name {
			return true
		}
	}
	return false
}

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
