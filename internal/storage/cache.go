package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// CachedStore serves GetCurrentSnapshot from an LRU cache in front of
// another Store. Writes go through and invalidate the cached entry.
//
// A miss only fills the cache when no write finished while the lookup was
// in flight, so a slow read cannot re-cache a snapshot a write replaced.
type CachedStore struct {
	Store
	cache  *lru.Cache[string, *types.Snapshot]
	logger *slog.Logger

	mu     sync.Mutex
	writes uint64
}

// NewCachedStore wraps next with a snapshot cache holding up to size entries.
func NewCachedStore(next Store, size int, logger *slog.Logger) (*CachedStore, error) {
	cache, err := lru.New[string, *types.Snapshot](size)
	if err != nil {
		return nil, fmt.Errorf("create snapshot cache: %w", err)
	}
	return &CachedStore{
		Store:  next,
		cache:  cache,
		logger: logger.With("component", "cached_store"),
	}, nil
}

func (s *CachedStore) Name() string { return "cached(" + s.Store.Name() + ")" }

func (s *CachedStore) UpsertProduct(ctx context.Context, rec *types.SanitizedRecord) error {
	err := s.Store.UpsertProduct(ctx, rec)
	if rec != nil {
		s.mu.Lock()
		s.writes++
		s.cache.Remove(rec.Identifier)
		s.mu.Unlock()
	}
	return err
}

func (s *CachedStore) GetCurrentSnapshot(ctx context.Context, id string) (*types.Snapshot, error) {
	if snap, ok := s.cache.Get(id); ok {
		return snap.Clone(), nil
	}
	s.mu.Lock()
	gen := s.writes
	s.mu.Unlock()

	snap, err := s.Store.GetCurrentSnapshot(ctx, id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			s.logger.Warn("snapshot lookup failed", "identifier", id, "error", err)
		}
		return nil, err
	}
	s.mu.Lock()
	if s.writes == gen {
		s.cache.Add(id, snap.Clone())
	}
	s.mu.Unlock()
	return snap, nil
}

// Len returns the number of cached snapshots.
func (s *CachedStore) Len() int { return s.cache.Len() }

func (s *CachedStore) Close() error {
	s.cache.Purge()
	return s.Store.Close()
}
