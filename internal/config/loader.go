package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. PRICETRACKER_SCRAPER_BASE_URL.
const EnvPrefix = "PRICETRACKER"

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pricetracker")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".pricetracker"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides apply to every key.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("scraper.type", cfg.Scraper.Type)
	v.SetDefault("scraper.base_url", cfg.Scraper.BaseURL)
	v.SetDefault("scraper.request_timeout", cfg.Scraper.RequestTimeout)
	v.SetDefault("scraper.delay_min", cfg.Scraper.DelayMin)
	v.SetDefault("scraper.delay_max", cfg.Scraper.DelayMax)
	v.SetDefault("scraper.item_delay", cfg.Scraper.ItemDelay)
	v.SetDefault("scraper.max_attempts", cfg.Scraper.MaxAttempts)
	v.SetDefault("scraper.backoff_base", cfg.Scraper.BackoffBase)
	v.SetDefault("scraper.backoff_max", cfg.Scraper.BackoffMax)
	v.SetDefault("scraper.bot_markers", cfg.Scraper.BotMarkers)
	v.SetDefault("scraper.max_redirects", cfg.Scraper.MaxRedirects)
	v.SetDefault("scraper.max_body_size", cfg.Scraper.MaxBodySize)
	v.SetDefault("scraper.idle_conn_timeout", cfg.Scraper.IdleConnTimeout)
	v.SetDefault("scraper.max_idle_conns", cfg.Scraper.MaxIdleConns)
	v.SetDefault("scraper.headless", cfg.Scraper.Headless)
	v.SetDefault("scraper.give_up_statuses", cfg.Scraper.GiveUpStatuses)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)
	v.SetDefault("proxy.urls", cfg.Proxy.URLs)
	v.SetDefault("proxy.cooldown", cfg.Proxy.Cooldown)

	v.SetDefault("validation.price_ceiling", cfg.Validation.PriceCeiling)
	v.SetDefault("validation.suspicious_prices", cfg.Validation.SuspiciousPrices)
	v.SetDefault("validation.title_min", cfg.Validation.TitleMin)
	v.SetDefault("validation.title_max", cfg.Validation.TitleMax)
	v.SetDefault("validation.seller_max", cfg.Validation.SellerMax)
	v.SetDefault("validation.rating_min", cfg.Validation.RatingMin)
	v.SetDefault("validation.rating_max", cfg.Validation.RatingMax)
	v.SetDefault("validation.discount_tolerance", cfg.Validation.DiscountTolerance)
	v.SetDefault("validation.clock_skew", cfg.Validation.ClockSkew)
	v.SetDefault("validation.freshness", cfg.Validation.Freshness)
	v.SetDefault("validation.default_currency", cfg.Validation.DefaultCurrency)
	v.SetDefault("validation.identifier.length", cfg.Validation.Identifier.Length)
	v.SetDefault("validation.identifier.require_mixed", cfg.Validation.Identifier.RequireMixed)

	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.mirrors", cfg.Storage.Mirrors)
	v.SetDefault("storage.cache_size", cfg.Storage.CacheSize)
	v.SetDefault("storage.postgres.dsn", cfg.Storage.Postgres.DSN)
	v.SetDefault("storage.postgres.max_conns", cfg.Storage.Postgres.MaxConns)
	v.SetDefault("storage.postgres.migrate_on_start", cfg.Storage.Postgres.MigrateOnStart)
	v.SetDefault("storage.mongo.uri", cfg.Storage.Mongo.URI)
	v.SetDefault("storage.mongo.database", cfg.Storage.Mongo.Database)
	v.SetDefault("storage.export.enabled", cfg.Storage.Export.Enabled)
	v.SetDefault("storage.export.format", cfg.Storage.Export.Format)
	v.SetDefault("storage.export.output_path", cfg.Storage.Export.OutputPath)
	v.SetDefault("storage.export.quarantine_path", cfg.Storage.Export.QuarantinePath)
	v.SetDefault("storage.raw_pages.sink", cfg.Storage.RawPages.Sink)
	v.SetDefault("storage.raw_pages.dir", cfg.Storage.RawPages.Dir)
	v.SetDefault("storage.raw_pages.redis_addr", cfg.Storage.RawPages.RedisAddr)
	v.SetDefault("storage.raw_pages.redis_password", cfg.Storage.RawPages.RedisPassword)
	v.SetDefault("storage.raw_pages.redis_db", cfg.Storage.RawPages.RedisDB)
	v.SetDefault("storage.raw_pages.ttl", cfg.Storage.RawPages.TTL)

	v.SetDefault("products.identifiers", cfg.Products.Identifiers)
	v.SetDefault("products.scrape_interval", cfg.Products.ScrapeInterval)
	v.SetDefault("products.checkpoint_path", cfg.Products.CheckpointPath)

	v.SetDefault("api.port", cfg.API.Port)
	v.SetDefault("api.allowed_origins", cfg.API.AllowedOrigins)

	v.SetDefault("monitor.alert_threshold_pct", cfg.Monitor.AlertThresholdPct)
	v.SetDefault("monitor.alert_window", cfg.Monitor.AlertWindow)
	v.SetDefault("monitor.anomaly_ratio", cfg.Monitor.AnomalyRatio)
	v.SetDefault("monitor.webhook_url", cfg.Monitor.WebhookURL)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
