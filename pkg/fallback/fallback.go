// Package fallback wraps collaborator calls so every call site gets either the
// real response or a well-defined degraded default, never a bespoke fallback type.
package fallback

import (
	"context"
	"errors"
	"time"

	"github.com/getmentor/getmentor-sessions/pkg/circuitbreaker"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/metrics"
	"github.com/getmentor/getmentor-sessions/pkg/retry"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Result carries a collaborator response. When Degraded is true, Value holds the
// default produced by the fallback and Err holds the cause.
type Result[T any] struct {
	Value    T
	Degraded bool
	Err      error
}

// Failed reports whether the call failed without a usable value. Permanent
// errors (for example "not found") are returned this way instead of degrading.
func (r Result[T]) Failed() bool {
	return r.Err != nil && !r.Degraded
}

// Guard describes how a collaborator call is protected.
type Guard struct {
	Service   string
	Operation string
	Breaker   *gobreaker.CircuitBreaker
	Retry     *retry.Config
}

// PermanentError marks an error that must not be retried, degraded or counted
// against the breaker.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string   { return e.Err.Error() }
func (e *PermanentError) Unwrap() error   { return e.Err }
func (e *PermanentError) Permanent() bool { return true }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked permanent.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// Call runs fn behind the guard. Transient failures (including an open breaker)
// produce Result{Value: degraded(err), Degraded: true}.
func Call[T any](ctx context.Context, g Guard, fn func(ctx context.Context) (T, error), degraded func(err error) T) Result[T] {
	start := time.Now()

	attempt := func() (T, error) {
		if g.Breaker == nil {
			return fn(ctx)
		}
		return circuitbreaker.Execute(g.Breaker, func() (T, error) {
			return fn(ctx)
		})
	}

	var value T
	var err error
	if g.Retry != nil {
		value, err = retry.DoWithResult(ctx, *g.Retry, g.Service+"."+g.Operation, attempt)
	} else {
		value, err = attempt()
	}

	duration := metrics.MeasureDuration(start)

	if err == nil {
		metrics.UpstreamRequestDuration.WithLabelValues(g.Service, g.Operation, "success").Observe(duration)
		logger.LogAPICall(g.Service, g.Operation, "success", duration)
		return Result[T]{Value: value}
	}

	if IsPermanent(err) {
		metrics.UpstreamRequestDuration.WithLabelValues(g.Service, g.Operation, "rejected").Observe(duration)
		logger.LogAPICall(g.Service, g.Operation, "rejected", duration, zap.Error(err))
		return Result[T]{Value: value, Err: err}
	}

	metrics.UpstreamRequestDuration.WithLabelValues(g.Service, g.Operation, "error").Observe(duration)
	metrics.UpstreamDegraded.WithLabelValues(g.Service, g.Operation).Inc()
	logger.Warn("Collaborator unavailable, using degraded default",
		zap.String("service", g.Service),
		zap.String("operation", g.Operation),
		zap.Error(err))

	return Result[T]{Value: degraded(err), Degraded: true, Err: err}
}
