package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "secrets:authfail:"

var recordFailureScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter keeps counters in Redis so every replica sees the same state.
// Keys expire with their window.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
}

// RedisOptions selects the Redis server.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisLimiter connects to Redis and verifies the connection with PING.
func NewRedisLimiter(ctx context.Context, opts RedisOptions, cfg Config) (*RedisLimiter, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &RedisLimiter{client: client, cfg: cfg.withDefaults()}, nil
}

// Blocked reports whether key reached the failure threshold in its current window.
func (r *RedisLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Get(ctx, keyPrefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= r.cfg.MaxFailures, nil
}

// RecordFailure counts one failure for key. The first failure starts the window.
func (r *RedisLimiter) RecordFailure(ctx context.Context, key string) error {
	windowMillis := r.cfg.Window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}
	return recordFailureScript.Run(ctx, r.client, []string{keyPrefix + key}, windowMillis).Err()
}

// Reset forgets key.
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}

// Close releases the client connection pool.
func (r *RedisLimiter) Close() error {
	return r.client.Close()
}
