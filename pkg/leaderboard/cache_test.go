package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sallich/PixelHub/pkg/ledger"
	"github.com/sallich/PixelHub/pkg/logger"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis, *ledger.MemoryLedger) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l, _ := logger.New(logger.Config{Level: "error", ServiceName: "test"})
	ml := ledger.NewMemoryLedger(time.Second)

	return New(client, "pixelhub:leaderboard", ml, l), mr, ml
}

func TestRecordAndTop(t *testing.T) {
	c, _, _ := newCache(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Record(ctx, "alice"))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Record(ctx, "bob"))
	}

	top, err := c.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "alice", top[0].Nickname)
	assert.Equal(t, int64(5), top[0].PixelCount)
	assert.Equal(t, "bob", top[1].Nickname)
	assert.Equal(t, int64(3), top[1].PixelCount)
}

func TestTopLimitsToN(t *testing.T) {
	c, _, _ := newCache(t)
	ctx := context.Background()

	for _, nickname := range []string{"alice", "bob", "carol"} {
		require.NoError(t, c.Record(ctx, nickname))
	}

	top, err := c.Top(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestEmptyCacheFallsBackToLedger(t *testing.T) {
	c, _, ml := newCache(t)
	ctx := context.Background()

	_, err := ml.Register(ctx, "alice")
	require.NoError(t, err)
	ok, err := ml.TryConsumeCooldown(ctx, "alice", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	top, err := c.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "alice", top[0].Nickname)
	assert.Equal(t, int64(1), top[0].PixelCount)
}

func TestRedisDownFallsBackToLedger(t *testing.T) {
	c, mr, ml := newCache(t)
	ctx := context.Background()

	_, err := ml.Register(ctx, "bob")
	require.NoError(t, err)

	mr.Close()

	top, err := c.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "bob", top[0].Nickname)
}
