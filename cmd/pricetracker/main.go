package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pricetracker",
		Short: "Amazon product price tracker",
		Long: `pricetracker scrapes Amazon product pages, validates and stores the extracted
price data, tracks price history and serves it over a small read API.

Commands:
  scrape    fetch the configured products once
  serve     run the read API and dashboard, optionally scraping on a schedule
  migrate   apply the Postgres schema
  show      print the stored snapshot and recent history of one product`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration and builds the logger from it.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(cfg.Logging), nil
}

// setupLogger creates a structured logger.
func setupLogger(lc config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.EqualFold(lc.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pricetracker %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Scraper:\n")
			fmt.Printf("  Type:              %s\n", cfg.Scraper.Type)
			fmt.Printf("  Base URL:          %s\n", cfg.Scraper.BaseURL)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Scraper.RequestTimeout)
			fmt.Printf("  Delay:             %s-%s\n", cfg.Scraper.DelayMin, cfg.Scraper.DelayMax)
			fmt.Printf("  Item Delay:        %s\n", cfg.Scraper.ItemDelay)
			fmt.Printf("  Max Attempts:      %d\n", cfg.Scraper.MaxAttempts)
			fmt.Printf("  Header Profiles:   %d configured\n", len(cfg.Scraper.Profiles))
			fmt.Printf("\nProxy:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Proxy.Enabled)
			fmt.Printf("  Count:             %d\n", len(cfg.Proxy.URLs))
			fmt.Printf("\nValidation:\n")
			fmt.Printf("  Price Ceiling:     %.2f\n", cfg.Validation.PriceCeiling)
			fmt.Printf("  Title Length:      %d-%d\n", cfg.Validation.TitleMin, cfg.Validation.TitleMax)
			fmt.Printf("  Freshness:         %s\n", cfg.Validation.Freshness)
			fmt.Printf("  Currency:          %s\n", cfg.Validation.DefaultCurrency)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Backend:           %s\n", cfg.Storage.Backend)
			fmt.Printf("  Mirrors:           %v\n", cfg.Storage.Mirrors)
			fmt.Printf("  Cache Size:        %d\n", cfg.Storage.CacheSize)
			fmt.Printf("  Export:            %v (%s)\n", cfg.Storage.Export.Enabled, cfg.Storage.Export.Format)
			fmt.Printf("  Raw Pages:         %s\n", cfg.Storage.RawPages.Sink)
			fmt.Printf("\nProducts:\n")
			fmt.Printf("  Tracked:           %d\n", len(cfg.Products.Identifiers))
			fmt.Printf("  Interval:          %s\n", cfg.Products.ScrapeInterval)
			fmt.Printf("\nAPI:\n")
			fmt.Printf("  Port:              %d\n", cfg.API.Port)
			fmt.Printf("  Alert Threshold:   %.1f%%\n", cfg.Monitor.AlertThresholdPct)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Path:              %s\n", cfg.Metrics.Path)
			return nil
		},
	}
}
