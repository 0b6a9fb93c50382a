package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	Items []string `json:"items"`
	Total int      `json:"total"`
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestFeedCache_MissThenHit(t *testing.T) {
	_, rdb := setupRedis(t)
	fc := NewFeedCache(rdb, time.Minute)
	ctx := context.Background()

	calls := 0
	fetch := func(dst *page) func() error {
		return func() error {
			calls++
			dst.Items = []string{"a", "b"}
			dst.Total = 2
			return nil
		}
	}

	var first page
	require.NoError(t, fc.Page(ctx, 1, 20, &first, fetch(&first)))
	var second page
	require.NoError(t, fc.Page(ctx, 1, 20, &second, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestFeedCache_InvalidateBumpsVersion(t *testing.T) {
	mr, rdb := setupRedis(t)
	fc := NewFeedCache(rdb, time.Minute)
	ctx := context.Background()

	var p page
	require.NoError(t, fc.Page(ctx, 1, 20, &p, func() error { p.Total = 1; return nil }))
	assert.True(t, mr.Exists(FeedPageKey(0, 1, 20)))

	fc.Invalidate(ctx)
	assert.Equal(t, int64(1), fc.Version(ctx))

	calls := 0
	var fresh page
	require.NoError(t, fc.Page(ctx, 1, 20, &fresh, func() error { calls++; fresh.Total = 5; return nil }))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 5, fresh.Total)
	assert.True(t, mr.Exists(FeedPageKey(1, 1, 20)))
}

func TestFeedCache_TTL(t *testing.T) {
	mr, rdb := setupRedis(t)
	fc := NewFeedCache(rdb, 10*time.Second)

	var p page
	require.NoError(t, fc.Page(context.Background(), 2, 5, &p, func() error { return nil }))
	assert.Equal(t, 10*time.Second, mr.TTL(FeedPageKey(0, 2, 5)))
}

func TestFeedCache_FetchErrorNotCached(t *testing.T) {
	mr, rdb := setupRedis(t)
	fc := NewFeedCache(rdb, time.Minute)

	var p page
	err := fc.Page(context.Background(), 1, 20, &p, func() error { return errors.New("db down") })
	assert.EqualError(t, err, "db down")
	assert.False(t, mr.Exists(FeedPageKey(0, 1, 20)))
}

func TestFeedCache_NilIsPassThrough(t *testing.T) {
	var fc *FeedCache
	calls := 0
	var p page
	require.NoError(t, fc.Page(context.Background(), 1, 20, &p, func() error { calls++; return nil }))
	fc.Invalidate(context.Background())
	assert.Equal(t, 1, calls)
	assert.Zero(t, fc.Version(context.Background()))
}

func TestAside_CorruptEntryRefetches(t *testing.T) {
	mr, rdb := setupRedis(t)
	require.NoError(t, mr.Set("k", "{not json"))

	var p page
	hit, err := Aside(context.Background(), rdb, "k", &p, time.Minute, func() error { p.Total = 9; return nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 9, p.Total)

	raw, err := mr.Get("k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":null,"total":9}`, raw)
}

func TestNewClient_ParsesURL(t *testing.T) {
	c, err := NewClient("redis://localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)

	_, err = NewClient("redis://%zz")
	assert.Error(t, err)
}
