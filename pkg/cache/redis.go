package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the Redis-backed Service. Every key is namespaced
// under one prefix so a shared Redis instance can host several
// deployments without collisions.
type RedisCache struct {
	client *redis.Client
	prefix string
}

type redisOptions struct {
	host     string
	port     int
	password string
	db       int
	prefix   string
}

type RedisOption func(*redisOptions)

func WithRedisHost(host string) RedisOption     { return func(o *redisOptions) { o.host = host } }
func WithRedisPort(port int) RedisOption        { return func(o *redisOptions) { o.port = port } }
func WithRedisPassword(pw string) RedisOption   { return func(o *redisOptions) { o.password = pw } }
func WithRedisDB(db int) RedisOption            { return func(o *redisOptions) { o.db = db } }
func WithRedisPrefix(prefix string) RedisOption { return func(o *redisOptions) { o.prefix = prefix } }

// NewRedisCache dials Redis and verifies the connection up front, so a
// bad address fails at startup rather than on the first tick.
func NewRedisCache(opts ...RedisOption) (*RedisCache, error) {
	o := redisOptions{host: "localhost", port: 6379, prefix: "meanrev"}
	for _, opt := range opts {
		opt(&o)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", o.host, o.port),
		Password:     o.password,
		DB:           o.db,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{client: client, prefix: o.prefix}, nil
}

// Client exposes the underlying connection for the job queue and the
// response cache, which speak raw Redis commands.
func (c *RedisCache) Client() *redis.Client { return c.client }

func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) ns(key string) string { return c.prefix + ":" + key }

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.client.Set(ctx, c.ns(key), data, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.ns(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	wrapped := make([]string, len(keys))
	for i, k := range keys {
		wrapped[i] = c.ns(k)
	}
	return c.client.Unlink(ctx, wrapped...).Err()
}

func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, c.ns(key), 1, ttl).Result()
}

func (c *RedisCache) Unlock(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.ns(key)).Err()
}

var _ Service = (*RedisCache)(nil)
