package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/api"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/monitor"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/observability"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/pipeline"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/storage"
)

var (
	servePort     int
	serveSchedule bool
)

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the read API and dashboard",
		Long: `Serve the product API, the dashboard and Prometheus metrics.

With --schedule the configured products are also scraped every
products.scrape_interval, skipping a tick when the checkpoint shows a recent run.`,
		RunE: runServe,
	}

	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides api.port)")
	cmd.Flags().BoolVar(&serveSchedule, "schedule", false, "scrape tracked products on products.scrape_interval")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.API.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	metrics := observability.NewMetrics()

	if serveSchedule {
		if len(cfg.Products.Identifiers) == 0 {
			return fmt.Errorf("--schedule needs products.identifiers in the config")
		}
		t, err := newTracker(ctx, cfg, store, metrics, logger)
		if err != nil {
			return err
		}
		defer t.Close()

		cp := pipeline.NewCheckpoint(cfg.Products.CheckpointPath)
		sched := monitor.NewScheduler(logger)
		sched.Add(&monitor.Schedule{
			Name:     "scrape",
			Interval: cfg.Products.ScrapeInterval,
			Run: func(ctx context.Context) error {
				due, err := cp.Due(cfg.Products.ScrapeInterval)
				if err != nil {
					logger.Warn("read checkpoint", "error", err)
				}
				if !due {
					logger.Info("skipping scheduled scrape, last run is recent")
					return nil
				}
				summary, err := runOnce(ctx, t, cp, cfg.Products.Identifiers)
				if err != nil {
					return err
				}
				logger.Info("scheduled scrape complete",
					"run_id", summary.RunID,
					"succeeded", summary.Succeeded,
					"failed", summary.Failed,
					"invalid", summary.Invalid,
				)
				return nil
			},
		})
		sched.Start(ctx)
		defer sched.Stop()
	}

	srv := api.NewServer(cfg, store, metrics, logger)
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
