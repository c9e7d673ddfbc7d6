package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

const nearTierTTL = 5 * time.Second

// LayeredCache reads through a small in-process tier before Redis.
// Price and status snapshots are polled far more often than they
// change, so the near tier absorbs most reads; its short TTL keeps
// replicas converging on the Redis copy.
type LayeredCache struct {
	near *MemoryCache
	far  *RedisCache
}

func NewLayeredCache(far *RedisCache) *LayeredCache {
	return &LayeredCache{near: NewMemoryCache(1024), far: far}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := lc.far.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	near := nearTierTTL
	if ttl > 0 && ttl < near {
		near = ttl
	}
	return lc.near.Set(ctx, key, value, near)
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	err := lc.near.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		return err
	}

	var raw json.RawMessage
	if err := lc.far.Get(ctx, key, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return err
	}
	return lc.near.Set(ctx, key, raw, nearTierTTL)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	if err := lc.near.Delete(ctx, keys...); err != nil {
		return err
	}
	return lc.far.Delete(ctx, keys...)
}

// Locks never touch the near tier: a lock taken by one replica must be
// visible to all of them.
func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.far.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.far.Unlock(ctx, key)
}

var _ Service = (*LayeredCache)(nil)
