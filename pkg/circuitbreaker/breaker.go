// Package circuitbreaker guards calls to the identity and notification
// services so an outage fails fast instead of stacking up timeouts.
package circuitbreaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config mirrors gobreaker.Settings
type Config struct {
	Name          string
	MaxRequests   uint32        // trial requests let through while half-open
	Interval      time.Duration // closed-state window after which counts reset
	Timeout       time.Duration // how long the breaker stays open
	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
	IsSuccessful  func(err error) bool
}

// DefaultConfig trips after at least 3 calls of which 60% failed. Errors that
// report Permanent() count as successes: a collaborator answering "no such
// user" is healthy.
func DefaultConfig(name string) Config {
	return Config{
		Name:          name,
		MaxRequests:   3,
		Interval:      60 * time.Second,
		Timeout:       30 * time.Second,
		ReadyToTrip:   tripOnFailureRatio(3, 0.6),
		OnStateChange: logStateChange,
		IsSuccessful:  successUnlessTransient,
	}
}

// NewCircuitBreaker builds the breaker and publishes its initial state
func NewCircuitBreaker(cfg Config) *gobreaker.CircuitBreaker {
	onChange := cfg.OnStateChange
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.ReadyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpstreamBreakerState.WithLabelValues(name).Set(float64(to))
			if onChange != nil {
				onChange(name, from, to)
			}
		},
		IsSuccessful: cfg.IsSuccessful,
	})
	metrics.UpstreamBreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))
	return cb
}

// Execute runs fn through cb with a typed result
func Execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return zero, FormatError(cb.Name(), err)
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker %q returned %T", cb.Name(), result)
	}
	return typed, nil
}

// FormatError names the breaker in rejections and keeps the gobreaker
// sentinel errors reachable through errors.Is.
func FormatError(breakerName string, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return fmt.Errorf("circuit breaker '%s' is open: %w", breakerName, err)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("circuit breaker '%s' has too many requests: %w", breakerName, err)
	default:
		return err
	}
}

func tripOnFailureRatio(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < minRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

func logStateChange(name string, from, to gobreaker.State) {
	logger.Warn("Circuit breaker state changed",
		zap.String("breaker", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()))
}

func successUnlessTransient(err error) bool {
	if err == nil {
		return true
	}
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}
