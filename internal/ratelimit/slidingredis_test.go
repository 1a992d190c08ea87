package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllowSlidingWindow(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := Limiter{Client: client, Prefix: "test:", Now: func() time.Time { return now }}

	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	start := now
	for i := 0; i < max; i++ {
		d, err := limiter.Allow(ctx, "key", window, max)
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i)
		require.Equal(t, max-(i+1), d.Remaining)
		now = now.Add(500 * time.Millisecond)
	}

	d, err := limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Zero(t, d.Remaining)
	require.Equal(t, start.Add(window), d.ResetAt)
	require.Equal(t, time.Second, d.RetryAfter(now))

	members, err := mr.ZMembers("test:key")
	require.NoError(t, err)
	require.Len(t, members, max, "rejected requests are not counted")

	// first request ages out, second is still inside the window
	now = start.Add(window + time.Millisecond)
	d, err = limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Zero(t, d.Remaining)
}

func TestLimiterDisabledWithoutClient(t *testing.T) {
	d, err := Limiter{}.Allow(context.Background(), "key", time.Second, 5)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, 5, d.Remaining)
}
