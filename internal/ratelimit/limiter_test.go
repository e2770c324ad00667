package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterWindow(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLimiter(5, time.Hour)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		d, err := l.CheckAndConsume(ctx, "subscribe:a@example.com")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "attempt %d", i+1)
	}

	now = now.Add(10 * time.Minute)
	d, err := l.CheckAndConsume(ctx, "subscribe:a@example.com")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 50*time.Minute, d.RetryAfter)

	other, err := l.CheckAndConsume(ctx, "subscribe:b@example.com")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	now = now.Add(time.Hour)
	d, err = l.CheckAndConsume(ctx, "subscribe:a@example.com")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestMemoryLimiterDisabled(t *testing.T) {
	l := NewMemoryLimiter(0, time.Hour)
	for i := 0; i < 20; i++ {
		d, err := l.CheckAndConsume(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	l := NewRedisLimiter(client, "bm:", 2, time.Hour)

	for i := 0; i < 2; i++ {
		d, err := l.CheckAndConsume(ctx, "subscribe:x@example.com")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.CheckAndConsume(ctx, "subscribe:x@example.com")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Hour)

	mr.FastForward(time.Hour + time.Second)
	d, err = l.CheckAndConsume(ctx, "subscribe:x@example.com")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
