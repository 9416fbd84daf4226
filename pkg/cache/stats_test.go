package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-ledger/internal/lifecycle"
	"trade-ledger/pkg/models"
)

func redisClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())
	require.NoError(t, rdb.FlushDB(ctx).Err())
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return NewClient(rdb)
}

// keyExists reports whether key is present in Redis
func keyExists(t *testing.T, client *Client, key string) bool {
	t.Helper()
	n, err := client.Redis().Exists(context.Background(), key).Result()
	require.NoError(t, err)
	return n > 0
}

func countingLoader(calls *int, stats lifecycle.TradeStats) func(context.Context) (lifecycle.TradeStats, error) {
	return func(context.Context) (lifecycle.TradeStats, error) {
		*calls++
		return stats, nil
	}
}

func TestStatsCacheWithoutRedisAlwaysLoads(t *testing.T) {
	ctx := context.Background()
	var s *StatsCache
	calls := 0

	for i := 0; i < 3; i++ {
		stats, err := s.TradeStats(ctx, countingLoader(&calls, lifecycle.TradeStats{Total: 2}))
		require.NoError(t, err)
		assert.EqualValues(t, 2, stats.Total)
	}
	assert.Equal(t, 3, calls)

	NewStatsCache(nil, 0).Observe(ctx, lifecycle.Event{Type: lifecycle.EventTradeCreated})
}

func TestStatsCacheBypassesUnreachableRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	s := NewStatsCache(NewClient(rdb), time.Minute)
	calls := 0

	stats, err := s.TradeStats(context.Background(), countingLoader(&calls, lifecycle.TradeStats{Total: 7}))
	require.NoError(t, err)
	assert.EqualValues(t, 7, stats.Total)
	assert.Equal(t, 1, calls)
}

func TestStatsCacheLoaderErrorIsReturned(t *testing.T) {
	s := NewStatsCache(nil, 0)
	boom := errors.New("store down")

	_, err := s.TotalValue(context.Background(), 1, func(context.Context) (decimal.Decimal, error) {
		return decimal.Zero, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestStatsCacheReadThroughAndInvalidation(t *testing.T) {
	ctx := context.Background()
	client := redisClient(t)
	s := NewStatsCache(client, time.Minute)
	calls := 0

	_, err := s.TradeStats(ctx, countingLoader(&calls, lifecycle.TradeStats{Total: 1, Pending: 1}))
	require.NoError(t, err)
	cached, err := s.TradeStats(ctx, countingLoader(&calls, lifecycle.TradeStats{Total: 99}))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, lifecycle.TradeStats{Total: 1, Pending: 1}, cached)

	total, err := s.TotalValue(ctx, 3, func(context.Context) (decimal.Decimal, error) {
		return decimal.RequireFromString("115000.00"), nil
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("115000").Equal(total))
	assert.True(t, keyExists(t, client, fmt.Sprintf(KeyTradeValue, 3)))

	s.Observe(ctx, lifecycle.Event{
		Type:  lifecycle.EventTradeStatusChanged,
		Trade: &models.Trade{ID: 1, CounterpartyID: 3},
	})
	assert.False(t, keyExists(t, client, KeyTradeCounts))
	assert.False(t, keyExists(t, client, fmt.Sprintf(KeyTradeValue, 3)))

	_, err = s.CounterpartyStats(ctx, func(context.Context) (lifecycle.CounterpartyStats, error) {
		return lifecycle.CounterpartyStats{Total: 4}, nil
	})
	require.NoError(t, err)
	s.Observe(ctx, lifecycle.Event{Type: lifecycle.EventCounterpartyCreated, Counterparty: &models.Counterparty{ID: 5}})
	assert.False(t, keyExists(t, client, KeyCounterpartyCounts))
}

func TestStatsCacheUpdateDropsBothCounterpartyTotals(t *testing.T) {
	ctx := context.Background()
	client := redisClient(t)
	s := NewStatsCache(client, time.Minute)

	for _, id := range []uint{1, 2, 3} {
		require.NoError(t, client.Set(ctx, fmt.Sprintf(KeyTradeValue, id), "10", time.Minute))
	}

	s.Observe(ctx, lifecycle.Event{
		Type:          lifecycle.EventTradeUpdated,
		Trade:         &models.Trade{ID: 9, CounterpartyID: 2},
		PreviousTrade: &models.Trade{ID: 9, CounterpartyID: 1},
	})
	assert.False(t, keyExists(t, client, fmt.Sprintf(KeyTradeValue, 1)))
	assert.False(t, keyExists(t, client, fmt.Sprintf(KeyTradeValue, 2)))
	assert.True(t, keyExists(t, client, fmt.Sprintf(KeyTradeValue, 3)))
}
