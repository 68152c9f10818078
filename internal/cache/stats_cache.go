// Package cache provides Redis-based caching for backtest stats lookups.
// The webhook path resolves a historical prior on every alert; caching keeps
// that read off Postgres on the hot path. When Redis is unavailable the
// cache degrades transparently to the underlying store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tradingview-agent/internal/backtest"
)

// Key layout and default TTL for cached stats.
const (
	statsKeyFormat  = "backtest:stats:%s:%s"
	DefaultStatsTTL = 6 * time.Hour
)

// Config holds Redis connection settings.
type Config struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	TTL      time.Duration
}

// StatsCache is a read-through cache in front of a backtest.StatsStore.
// The wrapped store may be nil, in which case Redis holds the stats alone.
type StatsCache struct {
	client *redis.Client
	store  backtest.StatsStore
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStatsCache connects to Redis and wraps the given store. A failed ping is
// not fatal; the cache starts in degraded mode and recovers on its own.
func NewStatsCache(cfg Config, store backtest.StatsStore, logger zerolog.Logger) *StatsCache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultStatsTTL
	}

	sc := &StatsCache{
		client: client,
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "cache").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		sc.logger.Warn().Err(err).Msg("initial Redis connection failed, running degraded")
	}
	return sc
}

// GetStats implements backtest.StatsStore with read-through caching.
func (sc *StatsCache) GetStats(ctx context.Context, ticker, pattern string) (*backtest.Stats, error) {
	key := fmt.Sprintf(statsKeyFormat, ticker, pattern)

	if data, err := sc.client.Get(ctx, key).Bytes(); err == nil {
		var stats backtest.Stats
		if err := json.Unmarshal(data, &stats); err == nil {
			return &stats, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		sc.client.Del(ctx, key)
	}

	if sc.store == nil {
		return nil, nil
	}

	stats, err := sc.store.GetStats(ctx, ticker, pattern)
	if err != nil || stats == nil {
		return stats, err
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := sc.client.Set(ctx, key, data, sc.ttl).Err(); err != nil {
			sc.logger.Debug().Err(err).Str("key", key).Msg("cache set failed")
		}
	}
	return stats, nil
}

// SaveStats writes through to the store and refreshes the cached entry.
func (sc *StatsCache) SaveStats(ctx context.Context, stats *backtest.Stats) error {
	if sc.store != nil {
		if err := sc.store.SaveStats(ctx, stats); err != nil {
			return err
		}
	}

	key := fmt.Sprintf(statsKeyFormat, stats.Ticker, stats.Pattern)
	if data, err := json.Marshal(stats); err == nil {
		if err := sc.client.Set(ctx, key, data, sc.ttl).Err(); err != nil {
			sc.logger.Debug().Err(err).Str("key", key).Msg("cache refresh failed")
		}
	}
	return nil
}

// Close releases the Redis client.
func (sc *StatsCache) Close() error {
	return sc.client.Close()
}
