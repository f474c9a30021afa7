package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/sallich/PixelHub/pkg/logger"
)

// PGLedger implements Ledger on PostgreSQL. Cooldown consumption is a single
// conditional UPDATE so the check and the update are one atomic statement.
type PGLedger struct {
	pool     *pgxpool.Pool
	cooldown time.Duration
	logger   *logger.Logger
}

// PostgresConfig holds database connection settings
type PostgresConfig struct {
	URI      string
	MinConns int32
	MaxConns int32
}

// NewPGLedger creates the connection pool and verifies connectivity.
func NewPGLedger(ctx context.Context, cfg PostgresConfig, cooldown time.Duration, l *logger.Logger) (*PGLedger, error) {
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

	return &PGLedger{pool: pool, cooldown: cooldown, logger: l}, nil
}

// NewPGLedgerFromPool wraps an existing pool (shared with the history store).
func NewPGLedgerFromPool(pool *pgxpool.Pool, cooldown time.Duration, l *logger.Logger) *PGLedger {
	return &PGLedger{pool: pool, cooldown: cooldown, logger: l}
}

// Register inserts the user with a backdated last_placed_at so the first
// placement is allowed immediately.
func (l *PGLedger) Register(ctx context.Context, nickname string) (UserRecord, error) {
	lastPlacedAt := time.Now().UTC().Add(-l.cooldown)

	const query = `
		INSERT INTO users (nickname, pixel_count, last_placed_at)
		VALUES ($1, 0, $2)
	`
	if _, err := l.pool.Exec(ctx, query, nickname, lastPlacedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return UserRecord{}, ErrDuplicateUser
		}
		return UserRecord{}, fmt.Errorf("failed to register user: %w", err)
	}

	l.logger.Debug("user registered", zap.String("nickname", nickname))
	return UserRecord{Nickname: nickname, LastPlacedAt: lastPlacedAt}, nil
}

// Get reads the user's snapshot without creating it.
func (l *PGLedger) Get(ctx context.Context, nickname string) (UserRecord, bool, error) {
	const query = `
		SELECT nickname, pixel_count, last_placed_at
		FROM users
		WHERE nickname = $1
	`
	var rec UserRecord
	err := l.pool.QueryRow(ctx, query, nickname).Scan(&rec.Nickname, &rec.PixelCount, &rec.LastPlacedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, false, nil
		}
		return UserRecord{}, false, fmt.Errorf("failed to read user: %w", err)
	}
	return rec, true, nil
}

// TryConsumeCooldown advances the cooldown and the pixel count in one
// conditional UPDATE. Zero rows affected means the window has not elapsed
// (or the user does not exist); the row is left untouched either way.
func (l *PGLedger) TryConsumeCooldown(ctx context.Context, nickname string, now time.Time) (bool, error) {
	cutoff := now.Add(-l.cooldown)

	const query = `
		UPDATE users
		SET last_placed_at = $2, pixel_count = pixel_count + 1
		WHERE nickname = $1 AND last_placed_at <= $3
	`
	tag, err := l.pool.Exec(ctx, query, nickname, now, cutoff)
	if err != nil {
		return false, fmt.Errorf("failed to consume cooldown: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TopN returns the leaderboard slice.
func (l *PGLedger) TopN(ctx context.Context, n int) ([]UserRecord, error) {
	const query = `
		SELECT nickname, pixel_count, last_placed_at
		FROM users
		ORDER BY pixel_count DESC, nickname ASC
		LIMIT $1
	`
	rows, err := l.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var records []UserRecord
	for rows.Next() {
		var rec UserRecord
		if err := rows.Scan(&rec.Nickname, &rec.PixelCount, &rec.LastPlacedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the pool
func (l *PGLedger) Close() error {
	l.pool.Close()
	return nil
}
