package leaderboard

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sallich/PixelHub/pkg/ledger"
	"github.com/sallich/PixelHub/pkg/logger"
)

// Cache serves top-N queries from a Redis sorted set, falling back to the
// ledger when the cache is empty or unavailable. The ledger remains the
// source of truth; increments here are best-effort.
type Cache struct {
	client *redis.Client
	key    string
	ledger ledger.Ledger
	logger *logger.Logger
}

// New creates a leaderboard cache over the given sorted-set key.
func New(client *redis.Client, key string, l ledger.Ledger, log *logger.Logger) *Cache {
	return &Cache{client: client, key: key, ledger: l, logger: log}
}

// Record bumps the nickname's score by one. Failures are returned for the
// caller to log; they never affect placement acceptance.
func (c *Cache) Record(ctx context.Context, nickname string) error {
	if err := c.client.ZIncrBy(ctx, c.key, 1, nickname).Err(); err != nil {
		return fmt.Errorf("failed to increment leaderboard score: %w", err)
	}
	return nil
}

// Top returns the n highest-scoring users. Any Redis error or an empty set
// falls through to the ledger so drift never survives a cache miss.
func (c *Cache) Top(ctx context.Context, n int) ([]ledger.UserRecord, error) {
	entries, err := c.client.ZRevRangeWithScores(ctx, c.key, 0, int64(n-1)).Result()
	if err != nil || len(entries) == 0 {
		if err != nil {
			c.logger.Warn("leaderboard cache unavailable, falling back to ledger")
		}
		return c.ledger.TopN(ctx, n)
	}

	records := make([]ledger.UserRecord, 0, len(entries))
	for _, e := range entries {
		nickname, ok := e.Member.(string)
		if !ok {
			continue
		}
		records = append(records, ledger.UserRecord{
			Nickname:   nickname,
			PixelCount: int64(e.Score),
		})
	}
	return records, nil
}
