// Package ratelimit implements the per-account event ingestion limit.
// The counter lives in Redis so the limit holds across API replicas.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindowLimiter allows up to limit hits per key within each window.
// The window is aligned to the first hit: the counter key expires after
// the window elapses and the next hit starts a fresh window.
type FixedWindowLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewFixedWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow records a hit for key and reports whether it is within the
// limit. INCR and EXPIRE run in one pipeline so a crash between them
// cannot leave an immortal counter; EXPIRE NX keeps the window anchored
// to the first hit instead of sliding on every one.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.prefix + ":" + key

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check for %s: %w", key, err)
	}

	return count.Val() <= int64(l.limit), nil
}

// RetryAfter reports how long until key's current window expires. A key
// with no live window can retry immediately.
func (l *FixedWindowLimiter) RetryAfter(ctx context.Context, key string) (time.Duration, error) {
	redisKey := l.prefix + ":" + key

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit ttl for %s: %w", key, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Remaining reports how many hits key has left in the current window.
func (l *FixedWindowLimiter) Remaining(ctx context.Context, key string) (int, error) {
	redisKey := l.prefix + ":" + key

	count, err := l.client.Get(ctx, redisKey).Int64()
	if err == redis.Nil {
		return l.limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rate limit lookup for %s: %w", key, err)
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
