// Package cache provides a Redis read-through cache for delivery rules.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gsindri/kaupa-skil-sub003/internal/delivery"
	"github.com/gsindri/kaupa-skil-sub003/pkg/api"
)

// DefaultTTL matches the reconciler's staleness window: a cached rule is
// at most as old as a non-stale pricing result.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "kaupa:rule:"

// RuleCache is a read-through delivery.RuleStore. Cache failures fail
// open in both directions: a broken Redis never hides the underlying
// store, it only costs the round trip.
type RuleCache struct {
	client *redis.Client
	store  delivery.RuleStore
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRuleCache wraps store with a Redis cache. A zero ttl means
// DefaultTTL.
func NewRuleCache(client *redis.Client, store delivery.RuleStore, ttl time.Duration, logger zerolog.Logger) *RuleCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RuleCache{client: client, store: store, ttl: ttl, log: logger}
}

// GetRule implements delivery.RuleStore.
func (c *RuleCache) GetRule(ctx context.Context, supplierID string) (*api.DeliveryRule, error) {
	key := keyPrefix + supplierID

	cached, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rule api.DeliveryRule
		if err := json.Unmarshal(cached, &rule); err == nil {
			return &rule, nil
		}
		c.log.Warn().Str("key", key).Msg("corrupt cached rule, falling through")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("key", key).Msg("rule cache read failed, falling through")
	}

	rule, err := c.store.GetRule(ctx, supplierID)
	if err != nil || rule == nil {
		return rule, err
	}

	if payload, err := json.Marshal(rule); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("rule cache write failed")
		}
	}
	return rule, nil
}

// Invalidate drops a supplier's cached rule.
func (c *RuleCache) Invalidate(ctx context.Context, supplierID string) {
	if err := c.client.Del(ctx, keyPrefix+supplierID).Err(); err != nil {
		c.log.Warn().Err(err).Str("supplier_id", supplierID).Msg("rule cache invalidation failed")
	}
}
