// Package ratelimit throttles repeated authentication failures per username.
package ratelimit

import (
	"context"
	"time"
)

// Defaults used when the configured values are not positive.
const (
	DefaultMaxFailures = 5
	DefaultWindow      = 15 * time.Minute
)

// FailureLimiter counts failed attempts per key inside a fixed window.
// A key is blocked once MaxFailures failures land in the same window.
type FailureLimiter interface {
	Blocked(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// Config sets the threshold and window length.
type Config struct {
	MaxFailures int
	Window      time.Duration
	Now         func() time.Time
}

func (c Config) withDefaults() Config {
	if c.MaxFailures <= 0 {
		c.MaxFailures = DefaultMaxFailures
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Nop never blocks.
type Nop struct{}

func (Nop) Blocked(context.Context, string) (bool, error) { return false, nil }
func (Nop) RecordFailure(context.Context, string) error   { return nil }
func (Nop) Reset(context.Context, string) error           { return nil }

var (
	_ FailureLimiter = Nop{}
	_ FailureLimiter = (*MemoryLimiter)(nil)
	_ FailureLimiter = (*RedisLimiter)(nil)
)
