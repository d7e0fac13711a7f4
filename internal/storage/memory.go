package storage

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// MemoryStore keeps everything in process memory. It is used for tests and
// single-run development.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*types.Snapshot
	history   map[string][]types.HistoryPoint
	now       func() time.Time
	logger    *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*types.Snapshot),
		history:   make(map[string][]types.HistoryPoint),
		now:       time.Now,
		logger:    logger.With("component", "memory_store"),
	}
}

// WithClock sets the clock used for updated_at and "today".
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) UpsertProduct(ctx context.Context, rec *types.SanitizedRecord) error {
	if rec == nil || rec.Identifier == "" {
		return storageErr(s.Name(), "upsert", errors.New("record has no identifier"))
	}
	if err := ctx.Err(); err != nil {
		return storageErr(s.Name(), "upsert", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[rec.Identifier] = types.SnapshotFromRecord(rec, s.now().UTC())
	if rec.CurrentPrice != nil {
		s.history[rec.Identifier] = append(s.history[rec.Identifier], types.HistoryPoint{
			Identifier:   rec.Identifier,
			CapturedAt:   rec.CapturedAt,
			Price:        *rec.CurrentPrice,
			Availability: rec.Availability,
		})
	}
	s.logger.Debug("product upserted", "identifier", rec.Identifier, "history_rows", len(s.history[rec.Identifier]))
	return nil
}

func (s *MemoryStore) GetCurrentSnapshot(_ context.Context, id string) (*types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return snap.Clone(), nil
}

func (s *MemoryStore) GetHistory(_ context.Context, id string, since time.Time) ([]types.HistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.historyLocked(id, since), nil
}

func (s *MemoryStore) historyLocked(id string, since time.Time) []types.HistoryPoint {
	out := make([]types.HistoryPoint, 0, len(s.history[id]))
	for _, p := range s.history[id] {
		if !p.CapturedAt.Before(since) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CapturedAt.Before(out[j].CapturedAt)
	})
	return out
}

func (s *MemoryStore) ListSnapshots(_ context.Context, filter types.SnapshotFilter) ([]*types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	byPrice := filter.SortBy == types.SortByPrice
	var out []*types.Snapshot
	for _, snap := range s.snapshots {
		if filter.Availability != "" && snap.Availability != filter.Availability {
			continue
		}
		if query != "" && !matchesQuery(snap, query) {
			continue
		}
		if byPrice && snap.CurrentPrice == nil {
			continue
		}
		out = append(out, snap.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if byPrice && *out[i].CurrentPrice != *out[j].CurrentPrice {
			return *out[i].CurrentPrice < *out[j].CurrentPrice
		}
		return out[i].Identifier < out[j].Identifier
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func matchesQuery(snap *types.Snapshot, query string) bool {
	if strings.Contains(strings.ToLower(snap.Identifier), query) {
		return true
	}
	return snap.Title != nil && strings.Contains(strings.ToLower(*snap.Title), query)
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *MemoryStore) HistorySeries(_ context.Context, ids []string, since time.Time) (map[string][]types.HistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]types.HistoryPoint, len(ids))
	for _, id := range ids {
		out[id] = s.historyLocked(id, since)
	}
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context) (*types.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &types.Stats{ByAvailability: make(map[types.Availability]int)}
	var sum float64
	for _, snap := range s.snapshots {
		st.TotalProducts++
		st.ByAvailability[snap.Availability]++
		if snap.CurrentPrice == nil {
			continue
		}
		p := *snap.CurrentPrice
		sum += p
		st.PricedProducts++
		if st.MinPrice == nil || p < *st.MinPrice {
			st.MinPrice = types.Ptr(p)
		}
		if st.MaxPrice == nil || p > *st.MaxPrice {
			st.MaxPrice = types.Ptr(p)
		}
	}
	if st.PricedProducts > 0 {
		st.AveragePrice = types.Ptr(sum / float64(st.PricedProducts))
	}

	today := startOfDay(s.now())
	for _, points := range s.history {
		st.HistoryRows += len(points)
		for _, p := range points {
			if !p.CapturedAt.Before(today) {
				st.ObservationsToday++
			}
		}
	}
	return st, nil
}

func (s *MemoryStore) DailySummary(_ context.Context, since time.Time) ([]types.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		sum float64
		n   int
	}
	days := make(map[string]map[string]*acc)
	for id, points := range s.history {
		for _, p := range points {
			if p.CapturedAt.Before(since) {
				continue
			}
			day := p.CapturedAt.UTC().Format(dayLayout)
			if days[day] == nil {
				days[day] = make(map[string]*acc)
			}
			a := days[day][id]
			if a == nil {
				a = &acc{}
				days[day][id] = a
			}
			a.sum += p.Price
			a.n++
		}
	}

	out := make([]types.DailySummary, 0, len(days))
	for day, products := range days {
		var total float64
		for _, a := range products {
			total += a.sum / float64(a.n)
		}
		out = append(out, types.DailySummary{
			Date:         day,
			Products:     len(products),
			AveragePrice: total / float64(len(products)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.logger.Debug("memory store closed", "products", len(s.snapshots))
	return nil
}
