// Package retry runs an operation again with exponential backoff while its
// error is classified as retryable.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")

type Config struct {
	// MaxAttempts counts the initial call, so 4 means one call plus three retries.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// IsRetryable reports whether err is worth another attempt. Nil retries everything.
	IsRetryable func(error) bool
	// OnRetry is called before sleeping, with the attempt that just failed.
	OnRetry func(attempt int, err error)
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		IsRetryable:  IsTransient,
	}
}

// WithRetries returns the default config allowing n retries after the first call.
func WithRetries(n int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = n + 1
	return cfg
}

var transientPatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"no such host",
	"temporary failure",
	"too many requests",
	"eof",
}

// IsTransient matches the network-level failures a second attempt usually fixes.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) && temp.Temporary() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func (c Config) delay(attempt int) time.Duration {
	if c.InitialDelay <= 0 {
		return 0
	}
	mult := c.Multiplier
	if mult <= 0 {
		mult = 2
	}
	d := time.Duration(float64(c.InitialDelay) * math.Pow(mult, float64(attempt-1)))
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, the context
// ends or MaxAttempts calls were made. fn receives the 1-based attempt number.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if cfg.IsRetryable != nil && !cfg.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}
		if d := cfg.delay(attempt); d > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(d):
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, maxAttempts, lastErr)
}

// Retry is Do for callers that do not care about the attempt number.
func Retry(ctx context.Context, cfg Config, fn func() error) error {
	return Do(ctx, cfg, func(int) error { return fn() })
}
