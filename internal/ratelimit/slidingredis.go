package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the oldest counted request leaves the window.
	ResetAt time.Time
}

// RetryAfter is the wait before the next request can succeed.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// Limiter is a sliding-window counter kept in one Redis sorted set per key.
// Rejected requests are not counted, so a throttled client recovers once its
// accepted requests age out.
type Limiter struct {
	Client redis.UniversalClient
	Prefix string
	Now    func() time.Time
}

func (l Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l Limiter) redisKey(key string) string {
	if l.Prefix == "" {
		return "ratelimit:" + key
	}
	return l.Prefix + key
}

// Allow counts a request against key. A nil client or a non-positive max or
// window disables limiting.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	now := l.now()
	if l.Client == nil || max <= 0 || window <= 0 {
		return Decision{Allowed: true, Limit: max, Remaining: max, ResetAt: now.Add(window)}, nil
	}

	rkey := l.redisKey(key)
	member := uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	var (
		count  *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := l.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, rkey, "-inf", "("+cutoff)
		pipe.ZAdd(ctx, rkey, redis.Z{Score: float64(now.UnixNano()), Member: member})
		count = pipe.ZCard(ctx, rkey)
		oldest = pipe.ZRangeWithScores(ctx, rkey, 0, 0)
		pipe.PExpire(ctx, rkey, window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	current := int(count.Val())
	resetAt := now.Add(window)
	if first := oldest.Val(); len(first) > 0 {
		resetAt = time.Unix(0, int64(first[0].Score)).Add(window)
	}
	if current > max {
		if err := l.Client.ZRem(ctx, rkey, member).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
		}
		return Decision{Allowed: false, Limit: max, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Decision{Allowed: true, Limit: max, Remaining: max - current, ResetAt: resetAt}, nil
}
