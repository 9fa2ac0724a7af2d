// Package retry runs calls to flaky collaborators with capped exponential
// backoff, and computes the backoff the sweep uses between reminder attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"go.uber.org/zap"
)

// Config controls one retried call. MaxRetries counts the attempts after the
// first one; RetryableErrors nil retries everything.
type Config struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	Jitter          bool // ±25% on every delay
	RetryableErrors func(error) bool
}

// DefaultConfig returns sensible retry defaults
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
		RetryableErrors: IsRetryable,
	}
}

// IdentityConfig is short: identity lookups sit on the booking path and
// degrade to placeholders instead of waiting.
func IdentityConfig() Config {
	c := DefaultConfig()
	c.MaxRetries = 2
	c.InitialDelay = 50 * time.Millisecond
	c.MaxDelay = 500 * time.Millisecond
	return c
}

// NotifierConfig retries a send once; undelivered reminders are picked up
// again by the next sweep.
func NotifierConfig() Config {
	c := DefaultConfig()
	c.MaxRetries = 1
	c.InitialDelay = 200 * time.Millisecond
	c.MaxDelay = time.Second
	return c
}

// Do is DoWithResult for calls without a result
func Do(ctx context.Context, config Config, operation string, fn func() error) error {
	_, err := DoWithResult(ctx, config, operation, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult calls fn until it succeeds, returns an error that is not
// retryable, or runs out of retries. It never calls fn once ctx is done.
func DoWithResult[T any](ctx context.Context, config Config, operation string, fn func() (T, error)) (T, error) {
	var zero T
	var err error

	for attempt := 0; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		var value T
		value, err = fn()
		switch {
		case err == nil:
			if attempt > 0 {
				logger.Info("Operation succeeded after retry",
					zap.String("operation", operation),
					zap.Int("attempt", attempt))
			}
			return value, nil
		case config.RetryableErrors != nil && !config.RetryableErrors(err):
			logger.Debug("Non-retryable error encountered",
				zap.String("operation", operation),
				zap.Error(err))
			return zero, err
		case attempt >= config.MaxRetries:
			logger.Warn("Operation failed after all retries",
				zap.String("operation", operation),
				zap.Int("max_retries", config.MaxRetries),
				zap.Error(err))
			return zero, fmt.Errorf("operation failed after %d retries: %w", config.MaxRetries, err)
		}

		delay := nextDelay(attempt, config)
		logger.Warn("Operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		if waitErr := sleep(ctx, delay); waitErr != nil {
			return zero, waitErr
		}
	}
}

// Backoff returns base * 2^(attempt-1) capped at maxDelay, with no jitter.
// Attempt 0 waits for nothing. A maxDelay of 0 means no cap.
func Backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	if maxDelay > 0 && delay > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(delay)
}

func nextDelay(attempt int, config Config) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt))
	if config.MaxDelay > 0 {
		delay = math.Min(delay, float64(config.MaxDelay))
	}
	if config.Jitter {
		//nolint:gosec // G404: jitter does not need crypto/rand
		delay *= 0.75 + rand.Float64()*0.5
	}
	return time.Duration(delay)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsRetryable reports whether err is worth another attempt. Context
// cancellation and errors that report Permanent() are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var p interface{ Permanent() bool }
	if errors.As(err, &p) && p.Permanent() {
		return false
	}
	return true
}
