package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
)

// Open builds the configured primary backend, its mirrors and, when
// cfg.CacheSize > 0, a snapshot cache in front of them.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	primary, err := openBackend(ctx, cfg.Backend, cfg, logger)
	if err != nil {
		return nil, err
	}

	var store Store = primary
	if len(cfg.Mirrors) > 0 {
		mirrors := make([]Store, 0, len(cfg.Mirrors))
		for _, name := range cfg.Mirrors {
			m, err := openBackend(ctx, name, cfg, logger)
			if err != nil {
				primary.Close()
				for _, opened := range mirrors {
					opened.Close()
				}
				return nil, fmt.Errorf("open mirror %s: %w", name, err)
			}
			mirrors = append(mirrors, m)
		}
		store = NewMultiStore(primary, mirrors, logger)
	}

	if cfg.CacheSize > 0 {
		cached, err := NewCachedStore(store, cfg.CacheSize, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		store = cached
	}

	logger.Info("storage opened", "backend", store.Name(), "mirrors", cfg.Mirrors)
	return store, nil
}

func openBackend(ctx context.Context, name string, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch name {
	case "memory":
		return NewMemoryStore(logger), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.Postgres, logger)
	case "mongo":
		return NewMongoStore(ctx, cfg.Mongo, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", name)
	}
}
