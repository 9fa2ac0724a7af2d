// Package sweep runs the periodic background pass that marks no-shows and
// dispatches due reminders.
package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/services"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/metrics"
	"github.com/getmentor/getmentor-sessions/pkg/profiling"
	"github.com/getmentor/getmentor-sessions/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// NoShowDetector marks sessions that were never started
type NoShowDetector interface {
	DetectNoShows(ctx context.Context, limit int) (int, error)
}

// Dispatcher delivers due reminders
type Dispatcher interface {
	DispatchDue(ctx context.Context) (services.DispatchReport, error)
}

// Result describes one sweep run
type Result struct {
	Skipped  bool
	NoShows  int
	Dispatch services.DispatchReport
}

// Sweeper runs at most one sweep at a time
type Sweeper struct {
	noShows    NoShowDetector
	dispatcher Dispatcher
	interval   time.Duration
	batchSize  int
	runTimeout time.Duration

	mu      sync.Mutex
	running bool
	lastRun time.Time

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a sweeper. runTimeout bounds a single run; 0 means the interval.
func New(noShows NoShowDetector, dispatcher Dispatcher, interval time.Duration, batchSize int, runTimeout time.Duration) *Sweeper {
	if runTimeout <= 0 {
		runTimeout = interval
	}
	return &Sweeper{
		noShows:    noShows,
		dispatcher: dispatcher,
		interval:   interval,
		batchSize:  batchSize,
		runTimeout: runTimeout,
		stop:       make(chan struct{}),
	}
}

// Start runs a sweep immediately and then on every tick until ctx is done or Stop is called
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		logger.Info("Sweep scheduler started", zap.Duration("interval", s.interval))
		s.runScheduled(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.runScheduled(ctx)
			}
		}
	}()
}

// Stop halts the scheduler and waits for an in-flight run to finish
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// LastRun returns when the last completed run started
func (s *Sweeper) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *Sweeper) runScheduled(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	if _, err := s.RunOnce(runCtx); err != nil {
		// next tick retries
		logger.LogError(err, "Scheduled sweep failed", zap.Duration("timeout", s.runTimeout))
	}
}

// RunOnce performs one sweep: no-show detection, then dispatch. If a run is
// already in progress the call is skipped.
func (s *Sweeper) RunOnce(ctx context.Context) (result Result, err error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Debug("Sweep already in progress, skipping")
		return Result{Skipped: true}, nil
	}
	s.running = true
	s.mu.Unlock()

	started := time.Now()
	ctx, span := tracing.StartBackgroundSpan(ctx, "sweep.run", attribute.Int("batch_size", s.batchSize))
	defer func() {
		span.SetAttributes(
			attribute.Int("no_shows", result.NoShows),
			attribute.Int("reminders_due", result.Dispatch.Due),
		)
		tracing.EndSpan(span, err)

		s.mu.Lock()
		s.running = false
		s.lastRun = started
		s.mu.Unlock()
		metrics.SweepDuration.WithLabelValues("total").Observe(metrics.MeasureDuration(started))
	}()

	s.phase(ctx, "no_show", func(ctx context.Context) {
		noShows, detectErr := s.noShows.DetectNoShows(ctx, s.batchSize)
		if detectErr != nil {
			logger.Error("No-show detection failed", zap.Error(detectErr))
		}
		result.NoShows = noShows
	})

	s.phase(ctx, "dispatch", func(ctx context.Context) {
		result.Dispatch, err = s.dispatcher.DispatchDue(ctx)
	})
	if err != nil {
		return result, err
	}

	report := result.Dispatch
	logger.Info("Sweep completed",
		zap.Int("no_shows", result.NoShows),
		zap.Int("due", report.Due),
		zap.Int("delivered", report.Delivered),
		zap.Int("failed", report.Failed),
		zap.Int("abandoned", report.Abandoned),
		zap.Duration("duration", time.Since(started)))

	return result, nil
}

// phase runs fn under the phase's profiling label and records its duration
func (s *Sweeper) phase(ctx context.Context, name string, fn func(ctx context.Context)) {
	started := time.Now()
	profiling.Phase(ctx, name, fn)
	metrics.SweepDuration.WithLabelValues(name).Observe(metrics.MeasureDuration(started))
}
