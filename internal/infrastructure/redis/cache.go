package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/avatarctic/tiered-cache/internal/core/domain/cache"
	"github.com/avatarctic/tiered-cache/internal/core/ports"
)

// RedisCache implements ports.RemoteCache using a Redis client.
type RedisCache struct {
	r redis.Cmdable
	// optional key prefix to namespace entries
	prefix string
}

var (
	_ ports.RemoteCache     = (*RedisCache)(nil)
	_ ports.RemoteTTLReader = (*RedisCache)(nil)
)

// NewRedisCache creates a new Redis-backed distributed tier.
func NewRedisCache(r redis.Cmdable, prefix string) *RedisCache {
	return &RedisCache{r: r, prefix: prefix}
}

func (c *RedisCache) namespaced(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get implements RemoteCache.Get.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.r.Get(ctx, c.namespaced(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, cache.NewRemoteError(cache.OpGet, key, err)
	}
	return val, true, nil
}

// GetWithTTL implements RemoteTTLReader with a pipelined GET and PTTL.
func (c *RedisCache) GetWithTTL(ctx context.Context, key string) (string, time.Duration, bool, error) {
	ns := c.namespaced(key)
	pipe := c.r.Pipeline()
	get := pipe.Get(ctx, ns)
	pttl := pipe.PTTL(ctx, ns)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return "", 0, false, cache.NewRemoteError(cache.OpGet, key, err)
	}

	val, err := get.Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, cache.NewRemoteError(cache.OpGet, key, err)
	}

	// PTTL answers -1 (no expiry) or -2 (gone) as raw negatives.
	remaining, err := pttl.Result()
	if err != nil || remaining < 0 {
		remaining = 0
	}
	return val, remaining, true, nil
}

// Set implements RemoteCache.Set. A non-positive ttl is rejected since Redis
// would store the key without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := cache.ValidateTTL(ttl); err != nil {
		return err
	}
	if err := c.r.Set(ctx, c.namespaced(key), value, ttl).Err(); err != nil {
		return cache.NewRemoteError(cache.OpSet, key, err)
	}
	return nil
}

// Delete implements RemoteCache.Delete.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.r.Del(ctx, c.namespaced(key)).Err(); err != nil {
		return cache.NewRemoteError(cache.OpDelete, key, err)
	}
	return nil
}
