// Package resilience provides retry with exponential backoff and a token
// bucket rate limiter.
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryConfig configures Do.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
	// Jitter randomizes each delay by up to this fraction (0.0 to 1.0).
	Jitter float64
}

// DefaultRetryConfig retries three times with backoff starting at 200ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:       3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Jitter:         0.1,
	}
}

// Do runs fn until it succeeds, attempts are exhausted, or the context ends.
// The backoff doubles between attempts. Context errors are returned as-is
// and are never retried.
func Do(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	backoff := cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if attempt == cfg.Attempts {
			break
		}

		delay := backoff
		if cfg.Jitter > 0 {
			delay += time.Duration(cfg.Jitter * rand.Float64() * float64(backoff))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		backoff *= 2
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return lastErr
}
