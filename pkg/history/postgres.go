package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sallich/PixelHub/pkg/canvas"
	"github.com/sallich/PixelHub/pkg/logger"
	"github.com/sallich/PixelHub/pkg/metrics"
)

// PGStore implements Store on an append-only PostgreSQL table. The serial id
// column carries the insertion order used to break placed_at ties.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// PostgresConfig holds database connection settings
type PostgresConfig struct {
	URI      string
	MinConns int32
	MaxConns int32
}

// NewPGStore creates the connection pool and verifies connectivity.
func NewPGStore(ctx context.Context, cfg PostgresConfig, l *logger.Logger) (*PGStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PGStore{pool: pool, logger: l}, nil
}

// NewPGStoreFromPool wraps an existing pool (shared with the ledger).
func NewPGStoreFromPool(pool *pgxpool.Pool, l *logger.Logger) *PGStore {
	return &PGStore{pool: pool, logger: l}
}

// Append inserts the placement and returns the assigned log position.
func (s *PGStore) Append(ctx context.Context, p canvas.Placement) (int64, error) {
	const query = `
		INSERT INTO pixels (x, y, color, nickname, placed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	start := time.Now()
	var id int64
	err := s.pool.QueryRow(ctx, query, p.X, p.Y, p.Color, p.Nickname, p.PlacedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to append placement: %w", err)
	}
	metrics.AppendLatency.Observe(time.Since(start).Seconds())

	s.logger.Debug("placement appended",
		zap.Int64("id", id),
		zap.Int("x", p.X),
		zap.Int("y", p.Y),
		zap.String("nickname", p.Nickname))
	return id, nil
}

// Board projects the current board.
func (s *PGStore) Board(ctx context.Context) ([]Cell, error) {
	const query = `
		SELECT DISTINCT ON (x, y) x, y, color
		FROM pixels
		ORDER BY x, y, placed_at DESC, id DESC
	`
	return s.queryCells(ctx, query)
}

// SnapshotAsOf projects the board as of t. DISTINCT ON with the id tie-break
// keeps exactly the latest qualifying record per coordinate.
func (s *PGStore) SnapshotAsOf(ctx context.Context, t time.Time) ([]Cell, error) {
	const query = `
		SELECT DISTINCT ON (x, y) x, y, color
		FROM pixels
		WHERE placed_at <= $1
		ORDER BY x, y, placed_at DESC, id DESC
	`
	return s.queryCells(ctx, query, t)
}

func (s *PGStore) queryCells(ctx context.Context, query string, args ...any) ([]Cell, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query board state: %w", err)
	}
	defer rows.Close()

	var cells []Cell
	for rows.Next() {
		var c Cell
		if err := rows.Scan(&c.X, &c.Y, &c.Color); err != nil {
			return nil, fmt.Errorf("failed to scan board row: %w", err)
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	metrics.SnapshotLatency.Observe(time.Since(start).Seconds())
	return cells, nil
}

// Close closes the pool
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
