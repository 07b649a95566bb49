package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/rs/zerolog"
)

// DefaultRetryDelay is the default delay between retry attempts
const DefaultRetryDelay = 5 * time.Minute

// Sweeper runs one sweep.
type Sweeper interface {
	RunSweep(ctx context.Context) (models.SweepReport, error)
}

// History reports when monitors last ran, so a restarted process keeps the
// cadence instead of sweeping immediately.
type History interface {
	LastSweepAt(ctx context.Context) (*time.Time, error)
}

// Scheduler runs sweeps periodically in serve mode.
type Scheduler struct {
	sweeper    Sweeper
	history    History
	interval   time.Duration
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time
	logger     zerolog.Logger

	mu        sync.Mutex
	isRunning bool
	lastRun   time.Time
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithRetryDelay overrides the delay between failed sweep attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.retryDelay = d }
}

// WithClock overrides the scheduler clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler creates a new Scheduler instance
func NewScheduler(cfg config.SchedulerConfig, sweeper Sweeper, history History, logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		sweeper:    sweeper,
		history:    history,
		interval:   cfg.Interval(),
		maxRetries: cfg.RetryAttempts,
		retryDelay: DefaultRetryDelay,
		now:        time.Now,
		logger:     logger.With().Str("component", "Scheduler").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs sweeps until ctx is cancelled. It blocks.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	s.logger.Info().Dur("interval", s.interval).Msg("Scheduler started")

	for {
		next, err := s.nextSweepTime(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to calculate next sweep time")
			next = s.now().Add(s.retryDelay)
		}

		wait := next.Sub(s.now())
		if wait > 0 {
			s.logger.Info().Time("next_sweep_time", next).Msg("Next sweep scheduled")
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.Info().Msg("Scheduler stopped")
				return nil
			case <-timer.C:
			}
		}

		s.mu.Lock()
		s.lastRun = s.now()
		s.mu.Unlock()

		s.RunWithRetries(ctx)
		if ctx.Err() != nil {
			s.logger.Info().Msg("Scheduler stopped")
			return nil
		}
	}
}

// nextSweepTime is one interval after the last execution, or now when that
// moment has passed or nothing ever ran.
func (s *Scheduler) nextSweepTime(ctx context.Context) (time.Time, error) {
	now := s.now()

	s.mu.Lock()
	last := s.lastRun
	s.mu.Unlock()

	if s.history != nil {
		stored, err := s.history.LastSweepAt(ctx)
		if err != nil {
			return time.Time{}, err
		}
		if stored != nil && stored.After(last) {
			last = *stored
		}
	}
	if last.IsZero() {
		return now, nil
	}
	next := last.Add(s.interval)
	if next.Before(now) {
		return now, nil
	}
	return next, nil
}

// RunWithRetries runs one sweep, retrying failed attempts up to the
// configured count. Cancellation stops retrying.
func (s *Scheduler) RunWithRetries(ctx context.Context) (models.SweepReport, error) {
	var (
		report  models.SweepReport
		lastErr error
	)

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			s.logger.Info().Int("attempt", attempt).Int("max_retries", s.maxRetries).Dur("delay", s.retryDelay).Msg("Retrying sweep after delay")
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return report, ctx.Err()
			}
		}

		report, lastErr = s.sweeper.RunSweep(ctx)
		if lastErr == nil {
			return report, nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			s.logger.Info().Err(lastErr).Int64("session_id", int64(report.Session)).Msg("Sweep interrupted, no further retries")
			return report, lastErr
		}
		s.logger.Error().Err(lastErr).Int64("session_id", int64(report.Session)).Int("attempt", attempt+1).Int("total_attempts", s.maxRetries+1).Msg("Sweep failed")
	}

	s.logger.Error().Msg("All retry attempts exhausted, waiting for the next cycle")
	return report, lastErr
}
