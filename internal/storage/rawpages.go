package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

// PageSink persists fetched HTML for later reprocessing.
type PageSink interface {
	Save(ctx context.Context, page *types.RawPage) error
	Close() error
	Name() string
}

// NopSink discards pages.
type NopSink struct{}

func (NopSink) Save(context.Context, *types.RawPage) error { return nil }
func (NopSink) Close() error                               { return nil }
func (NopSink) Name() string                               { return "none" }

// DirSink writes each page to <dir>/<identifier>/<timestamp>_<id>.html.
type DirSink struct {
	dir    string
	logger *slog.Logger
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string, logger *slog.Logger) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw page dir: %w", err)
	}
	return &DirSink{dir: dir, logger: logger.With("component", "raw_dir_sink")}, nil
}

func (s *DirSink) Name() string { return "dir" }

// PathFor returns where page is stored.
func (s *DirSink) PathFor(page *types.RawPage) string {
	name := fmt.Sprintf("%s_%s.html", page.FetchedAt.UTC().Format("20060102T150405Z"), page.ID)
	return filepath.Join(s.dir, page.Identifier, name)
}

func (s *DirSink) Save(_ context.Context, page *types.RawPage) error {
	path := s.PathFor(page)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return storageErr(s.Name(), "save page", err)
	}
	if err := os.WriteFile(path, []byte(page.HTML), 0o644); err != nil {
		return storageErr(s.Name(), "save page", err)
	}
	s.logger.Debug("raw page saved", "identifier", page.Identifier, "path", path, "bytes", len(page.HTML))
	return nil
}

func (s *DirSink) Close() error { return nil }

// RedisSink stores pages in Redis with a TTL. The latest page per
// identifier is also kept under a stable key.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(ctx context.Context, cfg config.RawPageConfig, logger *slog.Logger) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisSinkFromClient(client, cfg.TTL, logger), nil
}

// NewRedisSinkFromClient wraps an existing client.
func NewRedisSinkFromClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisSink {
	return &RedisSink{client: client, ttl: ttl, logger: logger.With("component", "raw_redis_sink")}
}

func (s *RedisSink) Name() string { return "redis" }

// PageKey returns the key for one stored page.
func PageKey(page *types.RawPage) string {
	return "rawpage:" + page.Identifier + ":" + page.ID.String()
}

// LatestPageKey returns the key holding the newest page for identifier.
func LatestPageKey(identifier string) string {
	return "rawpage:" + identifier + ":latest"
}

func (s *RedisSink) Save(ctx context.Context, page *types.RawPage) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, PageKey(page), page.HTML, s.ttl)
		pipe.Set(ctx, LatestPageKey(page.Identifier), page.HTML, s.ttl)
		return nil
	})
	if err != nil {
		return storageErr(s.Name(), "save page", err)
	}
	s.logger.Debug("raw page saved", "identifier", page.Identifier, "key", PageKey(page))
	return nil
}

// Latest returns the newest stored page HTML for identifier.
func (s *RedisSink) Latest(ctx context.Context, identifier string) (string, error) {
	html, err := s.client.Get(ctx, LatestPageKey(identifier)).Result()
	if err == redis.Nil {
		return "", types.ErrNotFound
	}
	if err != nil {
		return "", storageErr(s.Name(), "get page", err)
	}
	return html, nil
}

func (s *RedisSink) Close() error { return s.client.Close() }

// OpenPageSink builds the configured raw page sink.
func OpenPageSink(ctx context.Context, cfg config.RawPageConfig, logger *slog.Logger) (PageSink, error) {
	switch cfg.Sink {
	case "", "none":
		return NopSink{}, nil
	case "dir":
		return NewDirSink(cfg.Dir, logger)
	case "redis":
		return NewRedisSink(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported raw page sink: %s", cfg.Sink)
	}
}
