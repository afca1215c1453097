package dispatch

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/stacklok/toolhive-autosave/internal/status"
)

// jitterDivisor sets the jitter to ±1/10 of the interval
const jitterDivisor = 10

// TickerOption configures a TickerSource
type TickerOption func(*TickerSource)

// WithRetryInterval sets the delay used while the last save pass failed.
// It only applies when shorter than the regular interval.
func WithRetryInterval(d time.Duration) TickerOption {
	return func(s *TickerSource) {
		s.retryInterval = d
	}
}

// TickerSource requests a save on a jittered interval, falling back to a
// shorter retry interval until a failed save succeeds again
type TickerSource struct {
	dispatcher    *Dispatcher
	interval      time.Duration
	retryInterval time.Duration
}

// NewTickerSource creates a ticker source. A non-positive interval disables it.
func NewTickerSource(d *Dispatcher, interval time.Duration, opts ...TickerOption) *TickerSource {
	s := &TickerSource{
		dispatcher: d,
		interval:   interval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// jitteredInterval returns base shifted by a random offset within ±base/10,
// so several daemons started together do not hit shared storage at once.
func jitteredInterval(base time.Duration) time.Duration {
	jitter := base / jitterDivisor
	if jitter <= 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for save jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return base + offset
}

// nextDelay picks the wait before the next tick from the last pass outcome.
// retrying is true when the retry interval was chosen.
func (s *TickerSource) nextDelay() (delay time.Duration, retrying bool) {
	if s.retryInterval > 0 && s.retryInterval < s.interval {
		if st := s.dispatcher.coordinator.GetStatus(); st != nil && st.Phase == status.SavePhaseFailed {
			return s.retryInterval, true
		}
	}
	return jitteredInterval(s.interval), false
}

// Run issues START_SAVING on every tick until ctx ends. After each tick it
// waits for the save to settle so a failure shortens the next wait.
func (s *TickerSource) Run(ctx context.Context) error {
	if s.interval <= 0 {
		slog.Info("Periodic autosave disabled")
		return nil
	}

	next, _ := s.nextDelay()
	slog.Info("Configured periodic autosave",
		"base_interval", s.interval,
		"retry_interval", s.retryInterval,
		"actual_interval", next)

	timer := time.NewTimer(next)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Periodic autosave stopping")
			return nil
		case <-timer.C:
			if err := s.dispatcher.Dispatch(ctx, "ticker", StartSaving); err != nil {
				slog.Error("Failed to dispatch periodic save", "error", err)
			}
			if err := s.dispatcher.coordinator.WaitForIdle(ctx); err != nil {
				slog.Info("Periodic autosave stopping")
				return nil
			}

			next, retrying := s.nextDelay()
			if retrying {
				slog.Warn("Periodic save failed, retrying sooner", "retry_interval", next)
			}
			timer.Reset(next)
		}
	}
}
