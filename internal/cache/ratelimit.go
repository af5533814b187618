package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateKeyPrefix = "cbtimport:rate:"

// RateLimiter is a fixed-window counter shared by every instance pointing at
// the same Redis.
type RateLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

func NewRateLimiter(c *Cache, max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{client: c.Client, max: int64(max), window: window}
}

func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := rateKeyPrefix + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("incr rate key: %w", err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("expire rate key: %w", err)
		}
	}
	return n <= l.max, nil
}
