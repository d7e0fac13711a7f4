package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/observability"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// Fetcher performs a single GET attempt. Retries, delays and block
// detection live in Scraper.
type Fetcher interface {
	// Fetch retrieves url with the given request headers.
	Fetch(ctx context.Context, url string, header http.Header) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// New builds the fetcher selected by cfg.Scraper.Type. metrics may be nil.
func New(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (Fetcher, error) {
	switch cfg.Scraper.Type {
	case "", "http":
		f, err := NewHTTPFetcher(cfg, logger)
		if err != nil {
			return nil, err
		}
		f.metrics = metrics
		return f, nil
	case "browser":
		return NewBrowserFetcher(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown fetcher type %q", cfg.Scraper.Type)
	}
}
