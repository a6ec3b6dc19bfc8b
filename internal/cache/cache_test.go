package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepos/backend/internal/domain"
)

func TestNoopNeverHits(t *testing.T) {
	var c StatsCache = NoopStatsCache{}
	require.NoError(t, c.Set(context.Background(), 1, &domain.DashboardStats{}, time.Minute))
	_, ok, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Delete(context.Background(), 1))
}

func TestStatsKeyIsPerStore(t *testing.T) {
	assert.Equal(t, "pos:dashboard:stats:7", StatsKey(7))
	assert.NotEqual(t, StatsKey(7), StatsKey(8))
}

func TestRedisStatsCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("POS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POS_TEST_REDIS_ADDR is not set")
	}

	ctx := context.Background()
	c := NewRedisStatsCache(addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))

	storeID := time.Now().UnixNano()
	stats := &domain.DashboardStats{
		TodaySales: domain.CountAmount{Count: 3, Revenue: decimal.RequireFromString("45.50")},
		NetProfit:  decimal.RequireFromString("12.25"),
	}
	require.NoError(t, c.Set(ctx, storeID, stats, time.Minute))

	got, ok, err := c.Get(ctx, storeID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.TodaySales.Count)
	assert.True(t, got.TodaySales.Revenue.Equal(stats.TodaySales.Revenue))

	require.NoError(t, c.Delete(ctx, storeID))
	_, ok, err = c.Get(ctx, storeID)
	require.NoError(t, err)
	assert.False(t, ok)
}
