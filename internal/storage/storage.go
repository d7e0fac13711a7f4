// Package storage persists product snapshots and price history.
package storage

import (
	"context"
	"time"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// Store is the interface for all snapshot/history backends. A Store is
// constructed once by the caller and passed explicitly to the components
// that need it.
type Store interface {
	// UpsertProduct writes the current snapshot for rec and, when rec has a
	// current price, appends one history row. Whether the two writes are
	// atomic depends on the backend.
	UpsertProduct(ctx context.Context, rec *types.SanitizedRecord) error

	// GetCurrentSnapshot returns types.ErrNotFound when id is unknown.
	GetCurrentSnapshot(ctx context.Context, id string) (*types.Snapshot, error)

	// GetHistory returns observations captured at or after since, oldest first.
	GetHistory(ctx context.Context, id string, since time.Time) ([]types.HistoryPoint, error)

	// ListSnapshots returns snapshots ordered by identifier, or by price
	// when filter.SortBy is types.SortByPrice.
	ListSnapshots(ctx context.Context, filter types.SnapshotFilter) ([]*types.Snapshot, error)

	// HistorySeries returns GetHistory for several identifiers at once.
	HistorySeries(ctx context.Context, ids []string, since time.Time) (map[string][]types.HistoryPoint, error)

	// Stats summarizes the stored catalogue.
	Stats(ctx context.Context) (*types.Stats, error)

	// DailySummary groups history captured at or after since by UTC day,
	// oldest first. Days without observations are omitted.
	DailySummary(ctx context.Context, since time.Time) ([]types.DailySummary, error)

	// Close releases resources.
	Close() error

	// Name returns the backend identifier.
	Name() string
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const dayLayout = "2006-01-02"

func storageErr(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &types.StorageError{Backend: backend, Op: op, Err: err}
}
