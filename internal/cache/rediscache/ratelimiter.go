package rediscache

import (
	"context"
	"time"

	"github.com/BearBump/Packaroo/internal/cache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	c   *redis.Client
	now func() time.Time
}

var _ cache.RateLimiter = (*RateLimiter)(nil)

func NewRateLimiterFromClient(c *redis.Client) *RateLimiter {
	return &RateLimiter{c: c, now: time.Now}
}

// Allow делает INCR по ключу и ставит TTL, если ключ создаётся впервые.
// Возвращает (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// AllowPerMinute: окно фиксированное, ключ rl:<subject>:<yyyymmddhhmm>.
func (rl *RateLimiter) AllowPerMinute(ctx context.Context, subject string, limit int64) (bool, int64, error) {
	key := "rl:" + subject + ":" + rl.now().UTC().Format("200601021504")
	return rl.Allow(ctx, key, limit, time.Minute)
}
