// Package cache provides an optional Redis-backed advisory cache for the
// global usage counter. Admission checks may read a slightly stale value;
// settlement always writes through the relational store, which stays the
// single source of truth.
package cache

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// defaultTTL bounds how stale an admission-side counter read may be.
const defaultTTL = 5 * time.Second

// usageKey is the Redis key holding the cached global usage counter.
const usageKey = "metergate:global_usage_total"

// UsageCache caches the global usage counter in Redis. A nil *UsageCache is
// valid and disables caching.
type UsageCache struct {
	client goredis.Cmdable
	ttl    time.Duration
}

// New builds a UsageCache over a connected Redis client.
func New(client goredis.Cmdable) *UsageCache {
	if client == nil {
		return nil
	}
	return &UsageCache{client: client, ttl: defaultTTL}
}

// GetGlobalUsage returns the cached counter value, if present and fresh.
func (c *UsageCache) GetGlobalUsage(ctx context.Context) (decimal.Decimal, bool) {
	if c == nil || c.client == nil {
		return decimal.Zero, false
	}
	raw, errGet := c.client.Get(ctx, usageKey).Result()
	if errGet != nil {
		if errGet != goredis.Nil {
			log.WithError(errGet).Debug("usage cache: get failed")
		}
		return decimal.Zero, false
	}
	parsed, errParse := decimal.NewFromString(raw)
	if errParse != nil {
		return decimal.Zero, false
	}
	return parsed, true
}

// SetGlobalUsage stores the counter value with the cache TTL. Failures are
// logged and ignored; the cache is advisory.
func (c *UsageCache) SetGlobalUsage(ctx context.Context, value decimal.Decimal) {
	if c == nil || c.client == nil {
		return
	}
	if errSet := c.client.Set(ctx, usageKey, value.String(), c.ttl).Err(); errSet != nil {
		log.WithError(errSet).Debug("usage cache: set failed")
	}
}

// Invalidate drops the cached counter, forcing the next read through the DB.
func (c *UsageCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if errDel := c.client.Del(ctx, usageKey).Err(); errDel != nil {
		log.WithError(errDel).Debug("usage cache: invalidate failed")
	}
}
