package cache

import (
	"context"
	"time"

	"veritas/internal/observability"

	"github.com/redis/go-redis/v9"
)

// FeedCache caches rendered feed pages. Every mutation bumps a version
// counter so stale pages become unreachable without scanning keys; old
// entries age out through their TTL. A nil FeedCache, or one without a
// client, is a pass-through.
type FeedCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFeedCache returns a feed cache backed by rdb.
func NewFeedCache(rdb *redis.Client, ttl time.Duration) *FeedCache {
	if ttl <= 0 {
		ttl = DefaultFeedTTL
	}
	return &FeedCache{rdb: rdb, ttl: ttl}
}

func (f *FeedCache) enabled() bool {
	return f != nil && f.rdb != nil
}

// Version returns the current feed version, 0 when unset or unavailable.
func (f *FeedCache) Version(ctx context.Context) int64 {
	if !f.enabled() {
		return 0
	}
	v, err := f.rdb.Get(ctx, FeedVersionKey).Int64()
	if err != nil {
		return 0
	}
	return v
}

// Page serves one feed page through the cache, calling fetch to fill dest on a miss.
func (f *FeedCache) Page(ctx context.Context, page, pageSize int, dest any, fetch func() error) error {
	if !f.enabled() {
		return fetch()
	}
	key := FeedPageKey(f.Version(ctx), page, pageSize)
	hit, err := Aside(ctx, f.rdb, key, dest, f.ttl, fetch)
	if err != nil {
		return err
	}
	if hit {
		observability.FeedCacheLookups.WithLabelValues("hit").Inc()
	} else {
		observability.FeedCacheLookups.WithLabelValues("miss").Inc()
	}
	return nil
}

// Invalidate retires every cached page.
func (f *FeedCache) Invalidate(ctx context.Context) {
	if !f.enabled() {
		return
	}
	f.rdb.Incr(ctx, FeedVersionKey)
}
