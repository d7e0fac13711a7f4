package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/fetcher"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/monitor"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/observability"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/pipeline"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/storage"
)

// tracker holds everything a scrape run needs.
type tracker struct {
	runner  *pipeline.Runner
	store   storage.Store
	sink    storage.PageSink
	scraper *fetcher.Scraper
	logger  *slog.Logger
}

func newTracker(ctx context.Context, cfg *config.Config, store storage.Store, metrics *observability.Metrics, logger *slog.Logger) (*tracker, error) {
	f, err := fetcher.New(cfg, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	headers := fetcher.NewHeaderManager(cfg.Scraper.Profiles, cfg.Scraper.BaseURL+"/")
	scraper := fetcher.NewScraper(f, headers, cfg.Scraper, logger, fetcher.WithMetrics(metrics))

	sink, err := storage.OpenPageSink(ctx, cfg.Storage.RawPages, logger)
	if err != nil {
		scraper.Close()
		return nil, fmt.Errorf("open raw page sink: %w", err)
	}

	runner := pipeline.NewRunner(cfg, pipeline.Deps{
		Source:   scraper,
		Store:    store,
		Sink:     sink,
		Notifier: buildNotifier(cfg.Monitor, logger),
		Metrics:  metrics,
		Now:      time.Now,
	}, logger)

	return &tracker{runner: runner, store: store, sink: sink, scraper: scraper, logger: logger}, nil
}

func (t *tracker) Close() {
	if err := t.scraper.Close(); err != nil {
		t.logger.Warn("close fetcher", "error", err)
	}
	if err := t.sink.Close(); err != nil {
		t.logger.Warn("close raw page sink", "error", err)
	}
}

func buildNotifier(mc config.MonitorConfig, logger *slog.Logger) *monitor.Notifier {
	n := monitor.NewNotifier(logger)
	n.AddChannel(&monitor.LogChannel{Logger: logger})
	if mc.WebhookURL != "" {
		n.AddChannel(&monitor.WebhookChannel{
			URL:    mc.WebhookURL,
			Client: &http.Client{Timeout: 10 * time.Second},
		})
	}
	return n
}

// runOnce runs one batch and records it in the checkpoint.
func runOnce(ctx context.Context, t *tracker, cp *pipeline.Checkpoint, ids []string) (*pipeline.Summary, error) {
	summary, err := t.runner.Run(ctx, ids)
	if summary != nil && err == nil {
		if markErr := cp.Mark(summary); markErr != nil {
			t.logger.Warn("write checkpoint", "error", markErr)
		}
	}
	return summary, err
}
