// Package idempotency remembers keys for a while so repeated deliveries of
// the same notification are processed once.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

type Guard interface {
	// FirstSeen records key and reports true only for the first caller
	// within ttl.
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisGuard struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisGuard(rdb *redis.Client, prefix string) *RedisGuard {
	return &RedisGuard{rdb: rdb, prefix: prefix}
}

func (g *RedisGuard) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, g.prefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// CacheGuard is the single-process fallback used when Redis is not
// configured.
type CacheGuard struct {
	c *cache.Cache
}

func NewCacheGuard() *CacheGuard {
	return &CacheGuard{c: cache.New(24*time.Hour, 10*time.Minute)}
}

func (g *CacheGuard) FirstSeen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	// Add fails when the key is present and unexpired.
	if err := g.c.Add(key, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}
