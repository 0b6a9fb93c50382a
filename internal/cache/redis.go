// Package cache provides Redis caching utilities for the application.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"veritas/internal/observability"

	"github.com/redis/go-redis/v9"
)

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrorRate.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrorRate.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// NewClient builds a Redis client from a URL or host:port address and
// attaches the metrics hook. It does not dial.
func NewClient(addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	c := redis.NewClient(opts)
	c.AddHook(metricsHook{})
	return c, nil
}

// InitRedis initializes the Redis client with the given address. The feed
// runs without a cache when Redis is unreachable, so failures only warn.
func InitRedis(addr string) *redis.Client {
	c, err := NewClient(addr)
	if err != nil {
		slog.Warn("invalid REDIS_URL, continuing without cache", slog.String("addr", addr), slog.String("error", err.Error()))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable, continuing without cache", slog.String("error", err.Error()))
		_ = c.Close()
		return nil
	}

	slog.Info("redis connected")
	return c
}

// Aside implements cache-aside: it decodes key into dest on a hit, otherwise
// runs fetch and stores dest as JSON. Redis errors degrade to a plain fetch.
func Aside(ctx context.Context, rdb *redis.Client, key string, dest any, ttl time.Duration, fetch func() error) (hit bool, err error) {
	if rdb == nil {
		return false, fetch()
	}

	raw, getErr := rdb.Get(ctx, key).Bytes()
	if getErr == nil {
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			return true, nil
		}
		rdb.Del(ctx, key)
	}

	if err := fetch(); err != nil {
		return false, err
	}

	if payload, marshalErr := json.Marshal(dest); marshalErr == nil {
		rdb.Set(ctx, key, payload, ttl)
	}
	return false, nil
}
