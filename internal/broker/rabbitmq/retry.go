package rabbitmq

import (
	"context"
	"time"
)

const (
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = time.Second
)

// RetryPolicy is the in-process, per-message retry budget. MaxRetries counts handler
// attempts: with 3 a message is tried three times, sleeping 2s and then 4s between
// attempts (BaseDelay * 2^retries).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultRetryBaseDelay}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryBaseDelay
	}
	return p
}

// Delay is the pause after the given number of failed attempts.
func (p RetryPolicy) Delay(retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}
	if retries > 16 {
		retries = 16
	}
	return p.BaseDelay * time.Duration(1<<retries)
}

// ShouldRetry reports whether another attempt is allowed after retries failures.
func (p RetryPolicy) ShouldRetry(retries int) bool {
	return retries < p.MaxRetries
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
