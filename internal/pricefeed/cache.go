package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"warp-markets/internal/domain"
)

// cacheKey stores the serialized rate set.
const cacheKey = "pricefeed:rates"

// CachedSource decorates a Source with a short-TTL Redis cache so that
// bursts of aggregation requests do not hammer the feed. A cache miss
// or Redis failure falls through to the underlying source; only the
// source's own failure is fatal.
type CachedSource struct {
	next Source
	rdb  *redis.Client
	ttl  time.Duration
}

// NewCachedSource wraps next with a Redis cache.
func NewCachedSource(next Source, rdb *redis.Client, ttl time.Duration) *CachedSource {
	return &CachedSource{next: next, rdb: rdb, ttl: ttl}
}

// ExchangeRates returns cached rates when fresh, otherwise fetches and
// caches.
func (c *CachedSource) ExchangeRates(ctx context.Context) (Rates, error) {
	if data, err := c.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
		var rows []domain.ExchangeRate
		if err := json.Unmarshal(data, &rows); err == nil {
			return NewRates(rows), nil
		}
	}

	rates, err := c.next.ExchangeRates(ctx)
	if err != nil {
		return Rates{}, err
	}

	if data, err := json.Marshal(rates.Rows()); err == nil {
		// Cache write failures are not fatal; next request refetches.
		_ = c.rdb.Set(ctx, cacheKey, data, c.ttl).Err()
	}

	return rates, nil
}

// Ping verifies the Redis connection at startup.
func (c *CachedSource) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}
