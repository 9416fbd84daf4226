package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"trade-ledger/internal/lifecycle"
)

// Cache keys constants
const (
	KeyTradeCounts        = "stats:trades:counts"         // stats:trades:counts
	KeyTradeValue         = "stats:trades:value:%d"       // stats:trades:value:42
	KeyCounterpartyCounts = "stats:counterparties:counts" // stats:counterparties:counts
)

// DefaultStatsTTL bounds how stale a statistic may be if an invalidation is lost
const DefaultStatsTTL = 30 * time.Second

// StatsCache is a read-through cache for the ledger statistics endpoints.
// It observes lifecycle events and drops the keys each event makes stale.
// A nil client disables caching; Redis failures are logged and bypassed.
type StatsCache struct {
	client *Client
	ttl    time.Duration
	log    *logrus.Entry
}

// NewStatsCache creates a stats cache over client
func NewStatsCache(client *Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}
	return &StatsCache{
		client: client,
		ttl:    ttl,
		log:    logrus.WithField("component", "stats_cache"),
	}
}

// TradeStats returns cached trade counts, loading them on a miss
func (s *StatsCache) TradeStats(ctx context.Context, load func(context.Context) (lifecycle.TradeStats, error)) (lifecycle.TradeStats, error) {
	return readThrough(ctx, s, KeyTradeCounts, load)
}

// CounterpartyStats returns cached counterparty counts, loading them on a miss
func (s *StatsCache) CounterpartyStats(ctx context.Context, load func(context.Context) (lifecycle.CounterpartyStats, error)) (lifecycle.CounterpartyStats, error) {
	return readThrough(ctx, s, KeyCounterpartyCounts, load)
}

// TotalValue returns the cached total trade value of counterpartyID, loading it on a miss
func (s *StatsCache) TotalValue(ctx context.Context, counterpartyID uint, load func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	return readThrough(ctx, s, fmt.Sprintf(KeyTradeValue, counterpartyID), load)
}

// Observe drops the statistics an event invalidates
func (s *StatsCache) Observe(ctx context.Context, event lifecycle.Event) {
	if s == nil || s.client == nil {
		return
	}

	var keys []string
	switch {
	case event.Type == lifecycle.EventTradeRejected:
		return
	case event.Type.IsTrade():
		// counterparty counts include the with-trades figure
		keys = append(keys, KeyTradeCounts, KeyCounterpartyCounts, fmt.Sprintf(KeyTradeValue, event.Trade.CounterpartyID))
		// an update may move the trade to another counterparty
		if event.PreviousTrade != nil && event.PreviousTrade.CounterpartyID != event.Trade.CounterpartyID {
			keys = append(keys, fmt.Sprintf(KeyTradeValue, event.PreviousTrade.CounterpartyID))
		}
	default:
		keys = append(keys, KeyCounterpartyCounts)
	}

	err := s.client.Delete(ctx, keys...)
	if err != nil {
		s.log.WithError(err).WithField("event", event.Type).Warn("Failed to invalidate statistics")
	}
}

func readThrough[T any](ctx context.Context, s *StatsCache, key string, load func(context.Context) (T, error)) (T, error) {
	if s == nil || s.client == nil {
		return load(ctx)
	}

	var cached T
	err := s.client.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.log.WithError(err).WithField("key", key).Warn("Stats cache read failed")
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if err := s.client.Set(ctx, key, value, s.ttl); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Stats cache write failed")
	}
	return value, nil
}
