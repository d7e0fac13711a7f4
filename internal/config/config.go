package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for the price tracker.
type Config struct {
	Scraper    ScraperConfig    `mapstructure:"scraper"    yaml:"scraper"`
	Proxy      ProxyConfig      `mapstructure:"proxy"      yaml:"proxy"`
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation"`
	Storage    StorageConfig    `mapstructure:"storage"    yaml:"storage"`
	Products   ProductsConfig   `mapstructure:"products"   yaml:"products"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
	Monitor    MonitorConfig    `mapstructure:"monitor"    yaml:"monitor"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// ScraperConfig controls page fetching.
type ScraperConfig struct {
	Type            string          `mapstructure:"type"              yaml:"type"` // http, browser
	BaseURL         string          `mapstructure:"base_url"          yaml:"base_url"`
	RequestTimeout  time.Duration   `mapstructure:"request_timeout"   yaml:"request_timeout"`
	DelayMin        time.Duration   `mapstructure:"delay_min"         yaml:"delay_min"`
	DelayMax        time.Duration   `mapstructure:"delay_max"         yaml:"delay_max"`
	ItemDelay       time.Duration   `mapstructure:"item_delay"        yaml:"item_delay"`
	MaxAttempts     int             `mapstructure:"max_attempts"      yaml:"max_attempts"`
	BackoffBase     time.Duration   `mapstructure:"backoff_base"      yaml:"backoff_base"`
	BackoffMax      time.Duration   `mapstructure:"backoff_max"       yaml:"backoff_max"`
	BotMarkers      []string        `mapstructure:"bot_markers"       yaml:"bot_markers"`
	Profiles        []HeaderProfile `mapstructure:"profiles"          yaml:"profiles"`
	MaxRedirects    int             `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64           `mapstructure:"max_body_size"     yaml:"max_body_size"`
	IdleConnTimeout time.Duration   `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int             `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	Headless        bool            `mapstructure:"headless"          yaml:"headless"`

	// GiveUpStatuses are HTTP statuses that end retries at once. Empty
	// means every non-2xx status is retried up to MaxAttempts.
	GiveUpStatuses []int `mapstructure:"give_up_statuses" yaml:"give_up_statuses"`
}

// GivesUpOn reports whether status ends retries immediately.
func (s ScraperConfig) GivesUpOn(status int) bool {
	for _, code := range s.GiveUpStatuses {
		if code == status {
			return true
		}
	}
	return false
}

// HeaderProfile is one browser identity used for request headers.
type HeaderProfile struct {
	Name           string `mapstructure:"name"            yaml:"name"`
	UserAgent      string `mapstructure:"user_agent"      yaml:"user_agent"`
	AcceptLanguage string `mapstructure:"accept_language" yaml:"accept_language"`
	AcceptEncoding string `mapstructure:"accept_encoding" yaml:"accept_encoding"`
	Platform       string `mapstructure:"platform"        yaml:"platform"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled  bool          `mapstructure:"enabled"  yaml:"enabled"`
	Rotation string        `mapstructure:"rotation" yaml:"rotation"`
	URLs     []string      `mapstructure:"urls"     yaml:"urls"`
	Cooldown time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

// ValidationConfig controls record validation and sanitization.
type ValidationConfig struct {
	PriceCeiling      float64          `mapstructure:"price_ceiling"      yaml:"price_ceiling"`
	SuspiciousPrices  []float64        `mapstructure:"suspicious_prices"  yaml:"suspicious_prices"`
	TitleMin          int              `mapstructure:"title_min"          yaml:"title_min"`
	TitleMax          int              `mapstructure:"title_max"          yaml:"title_max"`
	SellerMax         int              `mapstructure:"seller_max"         yaml:"seller_max"`
	RatingMin         float64          `mapstructure:"rating_min"         yaml:"rating_min"`
	RatingMax         float64          `mapstructure:"rating_max"         yaml:"rating_max"`
	DiscountTolerance float64          `mapstructure:"discount_tolerance" yaml:"discount_tolerance"`
	ClockSkew         time.Duration    `mapstructure:"clock_skew"         yaml:"clock_skew"`
	Freshness         time.Duration    `mapstructure:"freshness"          yaml:"freshness"`
	DefaultCurrency   string           `mapstructure:"default_currency"   yaml:"default_currency"`
	Identifier        IdentifierPolicy `mapstructure:"identifier"         yaml:"identifier"`
}

// IdentifierPolicy describes what a well-formed product identifier looks like.
type IdentifierPolicy struct {
	Length       int  `mapstructure:"length"        yaml:"length"`
	RequireMixed bool `mapstructure:"require_mixed" yaml:"require_mixed"`
}

// StorageConfig controls the snapshot/history store and file exports.
type StorageConfig struct {
	Backend   string         `mapstructure:"backend"    yaml:"backend"` // memory, postgres, mongo
	Mirrors   []string       `mapstructure:"mirrors"    yaml:"mirrors"`
	CacheSize int            `mapstructure:"cache_size" yaml:"cache_size"`
	Postgres  PostgresConfig `mapstructure:"postgres"   yaml:"postgres"`
	Mongo     MongoConfig    `mapstructure:"mongo"      yaml:"mongo"`
	Export    ExportConfig   `mapstructure:"export"     yaml:"export"`
	RawPages  RawPageConfig  `mapstructure:"raw_pages"  yaml:"raw_pages"`
}

// PostgresConfig configures the Postgres backend.
type PostgresConfig struct {
	DSN            string `mapstructure:"dsn"              yaml:"dsn"`
	MaxConns       int32  `mapstructure:"max_conns"        yaml:"max_conns"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start" yaml:"migrate_on_start"`
}

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URI      string `mapstructure:"uri"      yaml:"uri"`
	Database string `mapstructure:"database" yaml:"database"`
}

// ExportConfig controls per-run file exports.
type ExportConfig struct {
	Enabled        bool   `mapstructure:"enabled"         yaml:"enabled"`
	Format         string `mapstructure:"format"          yaml:"format"` // json, jsonl, csv
	OutputPath     string `mapstructure:"output_path"     yaml:"output_path"`
	QuarantinePath string `mapstructure:"quarantine_path" yaml:"quarantine_path"`
}

// RawPageConfig controls persistence of fetched HTML.
type RawPageConfig struct {
	Sink          string        `mapstructure:"sink"           yaml:"sink"` // none, dir, redis
	Dir           string        `mapstructure:"dir"            yaml:"dir"`
	RedisAddr     string        `mapstructure:"redis_addr"     yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"       yaml:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"            yaml:"ttl"`
}

// ProductsConfig lists what to track and how often.
type ProductsConfig struct {
	Identifiers    []string      `mapstructure:"identifiers"     yaml:"identifiers"`
	ScrapeInterval time.Duration `mapstructure:"scrape_interval" yaml:"scrape_interval"`
	CheckpointPath string        `mapstructure:"checkpoint_path" yaml:"checkpoint_path"`
}

// APIConfig controls the read API and dashboard server.
type APIConfig struct {
	Port           int      `mapstructure:"port"            yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// MonitorConfig controls price change alerts.
type MonitorConfig struct {
	AlertThresholdPct float64       `mapstructure:"alert_threshold_pct" yaml:"alert_threshold_pct"`
	AlertWindow       time.Duration `mapstructure:"alert_window"        yaml:"alert_window"`
	AnomalyRatio      float64       `mapstructure:"anomaly_ratio"       yaml:"anomaly_ratio"`
	WebhookURL        string        `mapstructure:"webhook_url"         yaml:"webhook_url"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultProfiles are the desktop browser identities rotated by default.
func DefaultProfiles() []HeaderProfile {
	return []HeaderProfile{
		{
			Name:           "windows-chrome",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			AcceptLanguage: "en-US,en;q=0.9",
			AcceptEncoding: "gzip, deflate, br",
			Platform:       "Win32",
		},
		{
			Name:           "mac-safari",
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
			AcceptLanguage: "en-GB,en;q=0.9",
			AcceptEncoding: "gzip, deflate, br",
			Platform:       "MacIntel",
		},
		{
			Name:           "linux-firefox",
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
			AcceptLanguage: "en-US,en;q=0.8",
			AcceptEncoding: "gzip, deflate",
			Platform:       "Linux x86_64",
		},
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scraper: ScraperConfig{
			Type:           "http",
			BaseURL:        "https://www.amazon.in",
			RequestTimeout: 15 * time.Second,
			DelayMin:       2400 * time.Millisecond,
			DelayMax:       3600 * time.Millisecond,
			ItemDelay:      4500 * time.Millisecond,
			MaxAttempts:    3,
			BackoffBase:    2 * time.Second,
			BackoffMax:     60 * time.Second,
			BotMarkers: []string{
				"robot check",
				"captcha",
				"enter the characters you see below",
				"sorry, we just need to make sure you're not a robot",
			},
			Profiles:        DefaultProfiles(),
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    10,
			Headless:        true,
		},
		Proxy: ProxyConfig{
			Enabled:  false,
			Rotation: "round_robin",
			Cooldown: 10 * time.Minute,
		},
		Validation: ValidationConfig{
			PriceCeiling:      10_000_000,
			SuspiciousPrices:  []float64{999999.99},
			TitleMin:          3,
			TitleMax:          500,
			SellerMax:         100,
			RatingMin:         0,
			RatingMax:         5,
			DiscountTolerance: 5,
			ClockSkew:         time.Hour,
			Freshness:         24 * time.Hour,
			DefaultCurrency:   "INR",
			Identifier: IdentifierPolicy{
				Length:       10,
				RequireMixed: true,
			},
		},
		Storage: StorageConfig{
			Backend:   "memory",
			CacheSize: 512,
			Postgres: PostgresConfig{
				MaxConns:       5,
				MigrateOnStart: true,
			},
			Mongo: MongoConfig{
				URI:      "mongodb://localhost:27017",
				Database: "pricetracker",
			},
			Export: ExportConfig{
				Enabled:        false,
				Format:         "jsonl",
				OutputPath:     "./output",
				QuarantinePath: "./output/quarantine",
			},
			RawPages: RawPageConfig{
				Sink:      "none",
				Dir:       "./output/raw",
				RedisAddr: "localhost:6379",
				TTL:       72 * time.Hour,
			},
		},
		Products: ProductsConfig{
			ScrapeInterval: 4 * time.Hour,
			CheckpointPath: "./output/checkpoint.json",
		},
		API: APIConfig{
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		Monitor: MonitorConfig{
			AlertThresholdPct: 10,
			AlertWindow:       7 * 24 * time.Hour,
			AnomalyRatio:      0.5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
