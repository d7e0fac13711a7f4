package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/observability"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/pipeline"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/storage"
)

var (
	scrapeASINs           string
	scrapeRespectInterval bool
	scrapeJSON            bool
	scrapeExport          string
)

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the tracked products once",
		Long: `Fetch every tracked product page, extract and validate its price data,
store the result and print a succeeded/failed/invalid summary.

Products come from --asins or, when omitted, from products.identifiers in the config.`,
		RunE: runScrape,
	}

	cmd.Flags().StringVarP(&scrapeASINs, "asins", "a", "", "comma-separated product identifiers (overrides config)")
	cmd.Flags().BoolVar(&scrapeRespectInterval, "respect-interval", false, "skip the run if the last one finished within products.scrape_interval")
	cmd.Flags().BoolVar(&scrapeJSON, "json", false, "print the run summary as JSON")
	cmd.Flags().StringVarP(&scrapeExport, "format", "f", "", "export format for this run: json, jsonl, csv")

	return cmd
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if scrapeExport != "" {
		cfg.Storage.Export.Enabled = true
		cfg.Storage.Export.Format = strings.ToLower(scrapeExport)
	}

	ids := cfg.Products.Identifiers
	if scrapeASINs != "" {
		ids = splitList(scrapeASINs)
	}
	if len(ids) == 0 {
		return fmt.Errorf("no products to scrape: pass --asins or set products.identifiers")
	}

	cp := pipeline.NewCheckpoint(cfg.Products.CheckpointPath)
	if scrapeRespectInterval {
		due, err := cp.Due(cfg.Products.ScrapeInterval)
		if err != nil {
			logger.Warn("read checkpoint", "error", err)
		}
		if !due {
			last, _ := cp.Last()
			fmt.Printf("Skipping run: last run finished %s ago (interval %s)\n",
				time.Since(last.FinishedAt).Round(time.Second), cfg.Products.ScrapeInterval)
			return nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down...", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	metrics := observability.NewMetrics()
	t, err := newTracker(ctx, cfg, store, metrics, logger)
	if err != nil {
		return err
	}
	defer t.Close()

	logger.Info("starting scrape",
		"products", len(ids),
		"fetcher", cfg.Scraper.Type,
		"storage", store.Name(),
	)

	summary, runErr := runOnce(ctx, t, cp, ids)
	if summary != nil {
		if scrapeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}
		} else {
			printSummary(summary)
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func printSummary(s *pipeline.Summary) {
	fmt.Printf("\n✅ Run %s complete in %s\n", s.RunID, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	fmt.Printf("   Products:  %d\n", s.Total())
	fmt.Printf("   Succeeded: %d\n", s.Succeeded)
	fmt.Printf("   Failed:    %d\n", s.Failed)
	fmt.Printf("   Invalid:   %d\n", s.Invalid)
	if s.ExportPath != "" {
		fmt.Printf("   Output:    %s\n", s.ExportPath)
	}
	if s.QuarantinePath != "" {
		fmt.Printf("   Rejected:  %s\n", s.QuarantinePath)
	}

	for _, r := range s.Results {
		switch r.Status {
		case pipeline.StatusFailed:
			fmt.Printf("   ✗ %s failed at %s: %s\n", r.Identifier, r.Stage, r.Error)
		case pipeline.StatusInvalid:
			fmt.Printf("   ! %s invalid: %s\n", r.Identifier, strings.Join(r.Violations, "; "))
		}
		if r.Anomalous {
			fmt.Printf("   ⚠ %s price looks anomalous\n", r.Identifier)
		}
	}

	if !s.Quality.Passed {
		fmt.Println("\n   Quality checks:")
		for _, c := range s.Quality.FailedChecks {
			fmt.Printf("     - %s\n", c)
		}
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
