package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBytes is a BytesCache backed by a shared Redis client, keeping
// response caches warm across restarts.
type RedisBytes struct {
	cli    *redis.Client
	prefix string
}

func NewRedisBytes(cli *redis.Client, prefix string) *RedisBytes {
	return &RedisBytes{cli: cli, prefix: prefix}
}

func (r *RedisBytes) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

func (r *RedisBytes) GetBytes(key string) ([]byte, bool, error) {
	b, err := r.cli.Get(context.Background(), r.key(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisBytes) SetBytes(key string, value []byte, ttl time.Duration) error {
	return r.cli.Set(context.Background(), r.key(key), value, ttl).Err()
}

var _ BytesCache = (*RedisBytes)(nil)
var _ BytesCache = (*TTLCache)(nil)
