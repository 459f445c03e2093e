package keynotify

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/keynotify/credential"
	"github.com/redis/go-redis/v9"
)

// openDurable builds the durable-tier backend selected by cfg. The returned
// closer releases any connection the backend owns and is never nil.
func openDurable(ctx context.Context, cfg StorageConfig, rdb redis.UniversalClient) (credential.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case StorageMemory:
		return credential.NewMemoryBackend(), noop, nil

	case StorageRedis:
		closer := noop
		if rdb == nil {
			client := redis.NewClient(&redis.Options{
				Addr:         cfg.RedisAddr,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			})
			rdb = client
			closer = client.Close
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = closer()
			return nil, noop, fmt.Errorf("%w: redis ping: %v", credential.ErrBackendUnavailable, err)
		}
		return credential.NewRedisBackend(rdb, cfg.RedisPrefix, cfg.RedisTTL), closer, nil

	default:
		dir := cfg.Dir
		if dir == "" {
			d, err := credential.DefaultDir()
			if err != nil {
				return nil, noop, err
			}
			dir = d
		}
		var opts []credential.FileOption
		if cfg.Passphrase != "" {
			opts = append(opts, credential.WithPassphrase(cfg.Passphrase))
		}
		fb, err := credential.NewFileBackend(dir, opts...)
		if err != nil {
			return nil, noop, err
		}
		return fb, noop, nil
	}
}
