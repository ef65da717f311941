package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is a [Store] backed by go-redis. Keys are written as
// "<prefix>:<key>" without expiry; the session store owns their lifetime.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedis wraps client. An empty prefix defaults to "gv".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "gv"
	}
	return &Redis{redis: client, prefix: prefix}
}

func (r *Redis) key(k string) string {
	return r.prefix + ":" + k
}

// Get issues one GET; redis.Nil reports ok=false.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.redis.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return v, true, nil
}

// Set issues one SET without expiry.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.redis.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Remove deletes all keys with a single DEL.
func (r *Redis) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}
