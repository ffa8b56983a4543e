package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	l, err := NewRedisLimiter(ctx, RedisOptions{Addr: addr}, Config{MaxFailures: 2, Window: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	key := uuid.NewString()
	t.Cleanup(func() { _ = l.Reset(ctx, key) })

	require.NoError(t, l.RecordFailure(ctx, key))
	blocked, err := l.Blocked(ctx, key)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, l.RecordFailure(ctx, key))
	blocked, err = l.Blocked(ctx, key)
	require.NoError(t, err)
	assert.True(t, blocked)

	require.NoError(t, l.Reset(ctx, key))
	blocked, err = l.Blocked(ctx, key)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestNewRedisLimiter_RequiresAddr(t *testing.T) {
	_, err := NewRedisLimiter(context.Background(), RedisOptions{}, Config{})
	require.Error(t, err)
}
