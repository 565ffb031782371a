// Package cache implements a non-authoritative idempotency short-circuit.
// It caches nothing about balances — only a mapping from idempotency key
// to the entry id it already produced. Balances are never materialized
// or cached here; any Redis error degrades to a cache miss.
package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const ttl = 24 * time.Hour

// IdempotencyCache is a best-effort key -> committed-entry-id index.
type IdempotencyCache struct {
	rdb *redis.Client
}

// New wraps an already-connected redis client. rdb may be nil, in which
// case the cache always misses.
func New(rdb *redis.Client) *IdempotencyCache {
	return &IdempotencyCache{rdb: rdb}
}

func keyFor(idempotencyKey uuid.UUID) string {
	return "idem:" + idempotencyKey.String()
}

// Get returns the cached entry id for key, or ok=false on a miss or any
// Redis error — the store's unique index remains the source of truth.
func (c *IdempotencyCache) Get(ctx context.Context, key uuid.UUID) (entryID uuid.UUID, ok bool) {
	if c.rdb == nil {
		return uuid.Nil, false
	}
	s, err := c.rdb.Get(ctx, keyFor(key)).Result()
	if err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Set records that idempotencyKey produced entryID. Failures are ignored;
// this is a pure optimization, never consulted as ground truth.
func (c *IdempotencyCache) Set(ctx context.Context, idempotencyKey, entryID uuid.UUID) {
	if c.rdb == nil {
		return
	}
	_ = c.rdb.Set(ctx, keyFor(idempotencyKey), entryID.String(), ttl).Err()
}
