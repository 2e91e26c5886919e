package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores entries with SET key value EX ttl.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis parses a redis:// or rediss:// URL and builds a pooled client.
// No connection is made until the first command.
func NewRedis(url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opt)}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(c redis.UniversalClient) *Redis {
	return &Redis{client: c}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	const op = "cache.Redis.Get"

	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, cacheErr(op, err)
	}
	return v, true, nil
}

func (r *Redis) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	const op = "cache.Redis.SetWithTTL"
	return cacheErr(op, r.client.Set(ctx, key, value, ttl).Err())
}

func (r *Redis) Ping(ctx context.Context) error {
	const op = "cache.Redis.Ping"
	return cacheErr(op, r.client.Ping(ctx).Err())
}

func (r *Redis) Close() error { return r.client.Close() }
