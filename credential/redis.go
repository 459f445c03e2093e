package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores values as plain redis strings under prefix:key.
//
// A zero ttl stores keys without expiry.
type RedisBackend struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisBackend creates a backend over client. prefix namespaces the keys
// (default "kn").
func NewRedisBackend(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = "kn"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisBackend{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisBackend) redisKey(key string) string {
	return r.prefix + ":cred:" + key
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if r == nil || r.redis == nil {
		return "", false, ErrBackendUnavailable
	}
	v, err := r.redis.Get(ctx, r.redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return v, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key, value string) error {
	if r == nil || r.redis == nil {
		return ErrBackendUnavailable
	}
	if err := r.redis.Set(ctx, r.redisKey(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if r == nil || r.redis == nil {
		return ErrBackendUnavailable
	}
	if err := r.redis.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
