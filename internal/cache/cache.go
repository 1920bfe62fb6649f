package cache

import (
	"context"
	"time"
)

// BytesCache is a best-effort key/value cache. A miss is (nil, false, nil).
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RateLimiter counts hits per subject in fixed one-minute windows.
type RateLimiter interface {
	AllowPerMinute(ctx context.Context, subject string, limit int64) (bool, int64, error)
}
