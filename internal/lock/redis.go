// redis.go - Distributed per-user lock on Redis SET NX PX

package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bosocmputer/voicebill/internal/logger"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisConfig configures the Redis locker
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL bounds how long a crashed holder can block a user
	TTL time.Duration
	// RetryEvery is the poll interval while waiting
	RetryEvery time.Duration
}

// RedisLocker holds locks in Redis so several instances share them
type RedisLocker struct {
	rdb *goredis.Client
	cfg RedisConfig
	log *logger.Logger
}

func NewRedisLocker(ctx context.Context, log *logger.Logger, cfg RedisConfig) (*RedisLocker, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Minute
	}
	if cfg.RetryEvery <= 0 {
		cfg.RetryEvery = 100 * time.Millisecond
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "voicebill:lock:"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisLocker{rdb: rdb, cfg: cfg, log: log.With("service", "RedisLocker")}, nil
}

func (r *RedisLocker) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	k := r.cfg.KeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, k, token, r.cfg.TTL).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			return func() {
				// release must run even if the request ctx is already done
				relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := releaseScript.Run(relCtx, r.rdb, []string{k}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
					r.log.Warn("lock release failed", "key", k, "error", err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-time.After(r.cfg.RetryEvery):
		}
	}
}
