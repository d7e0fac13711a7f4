package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// MultiStore writes to a primary and any number of mirrors. Reads are
// served by the primary.
type MultiStore struct {
	primary Store
	mirrors []Store
	logger  *slog.Logger
}

// NewMultiStore creates a store that fans writes out to every backend.
func NewMultiStore(primary Store, mirrors []Store, logger *slog.Logger) *MultiStore {
	return &MultiStore{
		primary: primary,
		mirrors: mirrors,
		logger:  logger.With("component", "multi_store"),
	}
}

func (s *MultiStore) Name() string { return "multi" }

// UpsertProduct writes to every backend. A mirror failure is logged and
// reported but does not stop the other writes.
func (s *MultiStore) UpsertProduct(ctx context.Context, rec *types.SanitizedRecord) error {
	var errs []error
	if err := s.primary.UpsertProduct(ctx, rec); err != nil {
		s.logger.Error("primary store failed", "backend", s.primary.Name(), "error", err)
		errs = append(errs, err)
	}
	for _, m := range s.mirrors {
		if err := m.UpsertProduct(ctx, rec); err != nil {
			s.logger.Error("mirror store failed", "backend", m.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *MultiStore) GetCurrentSnapshot(ctx context.Context, id string) (*types.Snapshot, error) {
	return s.primary.GetCurrentSnapshot(ctx, id)
}

func (s *MultiStore) GetHistory(ctx context.Context, id string, since time.Time) ([]types.HistoryPoint, error) {
	return s.primary.GetHistory(ctx, id, since)
}

func (s *MultiStore) ListSnapshots(ctx context.Context, filter types.SnapshotFilter) ([]*types.Snapshot, error) {
	return s.primary.ListSnapshots(ctx, filter)
}

func (s *MultiStore) HistorySeries(ctx context.Context, ids []string, since time.Time) (map[string][]types.HistoryPoint, error) {
	return s.primary.HistorySeries(ctx, ids, since)
}

func (s *MultiStore) Stats(ctx context.Context) (*types.Stats, error) {
	return s.primary.Stats(ctx)
}

func (s *MultiStore) DailySummary(ctx context.Context, since time.Time) ([]types.DailySummary, error) {
	return s.primary.DailySummary(ctx, since)
}

func (s *MultiStore) Close() error {
	errs := []error{s.primary.Close()}
	for _, m := range s.mirrors {
		errs = append(errs, m.Close())
	}
	return errors.Join(errs...)
}
