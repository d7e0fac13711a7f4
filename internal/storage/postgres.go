package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/config"
	"github.com/Ayush-srivastava504/Amazon-Price-Tracker/internal/types"
)

const snapshotColumns = `identifier, title, current_price::float8, original_price::float8,
	discount_percent::float8, currency, availability, rating::float8, review_count, seller,
	source_url, captured_at, updated_at`

// PostgresStore keeps snapshots and history in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to cfg.DSN and, when configured, applies
// pending migrations.
func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := NewPostgresStoreFromPool(pool, logger)
	if cfg.MigrateOnStart {
		if err := Migrate(pool, s.logger); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewPostgresStoreFromPool wraps an existing pool.
func NewPostgresStoreFromPool(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger.With("component", "postgres_store"),
	}
}

// Pool exposes the underlying pool for migrations.
func (s *PostgresStore) Pool() *pgxpool.Pool { return s.pool }

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) UpsertProduct(ctx context.Context, rec *types.SanitizedRecord) error {
	if rec == nil || rec.Identifier == "" {
		return storageErr(s.Name(), "upsert", errors.New("record has no identifier"))
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO products (identifier, title, current_price, original_price, discount_percent,
				currency, availability, rating, review_count, seller, source_url, captured_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
			ON CONFLICT (identifier) DO UPDATE SET
				title = EXCLUDED.title,
				current_price = EXCLUDED.current_price,
				original_price = EXCLUDED.original_price,
				discount_percent = EXCLUDED.discount_percent,
				currency = EXCLUDED.currency,
				availability = EXCLUDED.availability,
				rating = EXCLUDED.rating,
				review_count = EXCLUDED.review_count,
				seller = EXCLUDED.seller,
				source_url = EXCLUDED.source_url,
				captured_at = EXCLUDED.captured_at,
				updated_at = now()`,
			rec.Identifier, rec.Title, rec.CurrentPrice, rec.OriginalPrice, rec.DiscountPercent,
			rec.Currency, string(rec.Availability), rec.Rating, rec.ReviewCount, rec.Seller,
			rec.SourceURL, rec.CapturedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}

		if rec.CurrentPrice == nil {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO price_history (identifier, captured_at, price, availability)
			VALUES ($1, $2, $3, $4)`,
			rec.Identifier, rec.CapturedAt, *rec.CurrentPrice, string(rec.Availability),
		)
		if err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		return nil
	})
	if err != nil {
		return storageErr(s.Name(), "upsert", err)
	}
	s.logger.Debug("product upserted", "identifier", rec.Identifier, "priced", rec.CurrentPrice != nil)
	return nil
}

func scanSnapshot(row pgx.Row) (*types.Snapshot, error) {
	var (
		snap         types.Snapshot
		availability string
	)
	err := row.Scan(
		&snap.Identifier, &snap.Title, &snap.CurrentPrice, &snap.OriginalPrice,
		&snap.DiscountPercent, &snap.Currency, &availability, &snap.Rating, &snap.ReviewCount,
		&snap.Seller, &snap.SourceURL, &snap.CapturedAt, &snap.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	snap.Availability = types.Availability(availability)
	return &snap, nil
}

func (s *PostgresStore) GetCurrentSnapshot(ctx context.Context, id string) (*types.Snapshot, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM products WHERE identifier = $1`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, storageErr(s.Name(), "get snapshot", err)
	}
	return snap, nil
}

func (s *PostgresStore) GetHistory(ctx context.Context, id string, since time.Time) ([]types.HistoryPoint, error) {
	series, err := s.HistorySeries(ctx, []string{id}, since)
	if err != nil {
		return nil, err
	}
	return series[id], nil
}

func (s *PostgresStore) HistorySeries(ctx context.Context, ids []string, since time.Time) (map[string][]types.HistoryPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT identifier, captured_at, price::float8, availability
		FROM price_history
		WHERE identifier = ANY($1) AND captured_at >= $2
		ORDER BY identifier, captured_at, id`, ids, since)
	if err != nil {
		return nil, storageErr(s.Name(), "history", err)
	}
	defer rows.Close()

	out := make(map[string][]types.HistoryPoint, len(ids))
	for _, id := range ids {
		out[id] = []types.HistoryPoint{}
	}
	for rows.Next() {
		var (
			p            types.HistoryPoint
			availability string
		)
		if err := rows.Scan(&p.Identifier, &p.CapturedAt, &p.Price, &availability); err != nil {
			return nil, storageErr(s.Name(), "history", err)
		}
		p.Availability = types.Availability(availability)
		out[p.Identifier] = append(out[p.Identifier], p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(s.Name(), "history", err)
	}
	return out, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, filter types.SnapshotFilter) ([]*types.Snapshot, error) {
	var (
		where []string
		args  []any
	)
	if filter.Availability != "" {
		args = append(args, string(filter.Availability))
		where = append(where, fmt.Sprintf("availability = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, likePattern(q))
		where = append(where, fmt.Sprintf("(identifier ILIKE $%d OR title ILIKE $%d)", len(args), len(args)))
	}
	order := " ORDER BY identifier"
	if filter.SortBy == types.SortByPrice {
		where = append(where, "current_price IS NOT NULL")
		order = " ORDER BY current_price, identifier"
	}

	query := `SELECT ` + snapshotColumns + ` FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += order
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(s.Name(), "list", err)
	}
	defer rows.Close()

	var out []*types.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, storageErr(s.Name(), "list", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(s.Name(), "list", err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches q as a literal substring under LIKE's default
// backslash escape.
func likePattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

func (s *PostgresStore) Stats(ctx context.Context) (*types.Stats, error) {
	st := &types.Stats{ByAvailability: make(map[types.Availability]int)}

	err := s.pool.QueryRow(ctx, `
		SELECT count(*), count(current_price),
			avg(current_price)::float8, min(current_price)::float8, max(current_price)::float8
		FROM products`).Scan(&st.TotalProducts, &st.PricedProducts, &st.AveragePrice, &st.MinPrice, &st.MaxPrice)
	if err != nil {
		return nil, storageErr(s.Name(), "stats", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT availability, count(*) FROM products GROUP BY availability`)
	if err != nil {
		return nil, storageErr(s.Name(), "stats", err)
	}
	for rows.Next() {
		var (
			availability string
			n            int
		)
		if err := rows.Scan(&availability, &n); err != nil {
			rows.Close()
			return nil, storageErr(s.Name(), "stats", err)
		}
		st.ByAvailability[types.Availability(availability)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr(s.Name(), "stats", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE captured_at >= $1)
		FROM price_history`, startOfDay(time.Now())).Scan(&st.HistoryRows, &st.ObservationsToday)
	if err != nil {
		return nil, storageErr(s.Name(), "stats", err)
	}
	return st, nil
}

func (s *PostgresStore) DailySummary(ctx context.Context, since time.Time) ([]types.DailySummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT day, count(*), avg(avg_price)::float8
		FROM (
			SELECT to_char(captured_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
				identifier, avg(price) AS avg_price
			FROM price_history
			WHERE captured_at >= $1
			GROUP BY 1, 2
		) per_product
		GROUP BY day
		ORDER BY day`, since)
	if err != nil {
		return nil, storageErr(s.Name(), "daily summary", err)
	}
	defer rows.Close()

	out := []types.DailySummary{}
	for rows.Next() {
		var d types.DailySummary
		if err := rows.Scan(&d.Date, &d.Products, &d.AveragePrice); err != nil {
			return nil, storageErr(s.Name(), "daily summary", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(s.Name(), "daily summary", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	s.logger.Info("postgres store closed")
	return nil
}
