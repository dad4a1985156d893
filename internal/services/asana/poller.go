package asana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tenant-console/internal/logging"
)

// ErrPollTimeout is returned when a run does not finish within PollConfig.Timeout
var ErrPollTimeout = errors.New("import run did not finish before the polling timeout")

// RetriesExhaustedError is returned after MaxRetries consecutive fetch failures
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("run status polling failed after %d consecutive attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

// Clock abstracts waiting so tests can drive the poller without sleeping
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// PollConfig controls run status polling
type PollConfig struct {
	Interval      time.Duration // wait before each status fetch
	RetryDelay    time.Duration // first wait after a failed fetch
	MaxRetryDelay time.Duration
	MaxRetries    int           // consecutive failures before giving up
	Timeout       time.Duration // overall wall clock budget, 0 disables
}

// DefaultPollConfig returns the console's polling cadence
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:      2 * time.Second,
		RetryDelay:    3 * time.Second,
		MaxRetryDelay: 30 * time.Second,
		MaxRetries:    10,
		Timeout:       30 * time.Minute,
	}
}

// Poller follows an import run until it reaches a terminal status
type Poller struct {
	cfg   PollConfig
	clock Clock
	log   *zap.Logger
}

// PollerOption configures a Poller
type PollerOption func(*Poller)

// WithClock replaces the wall clock
func WithClock(clock Clock) PollerOption {
	return func(p *Poller) { p.clock = clock }
}

// NewPoller creates a poller; zero config fields fall back to defaults
func NewPoller(cfg PollConfig, opts ...PollerOption) *Poller {
	def := DefaultPollConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = def.MaxRetryDelay
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = cfg.RetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}

	p := &Poller{cfg: cfg, clock: realClock{}, log: logging.Named("poller")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration
func (p *Poller) Config() PollConfig {
	return p.cfg
}

// Poll fetches the run every Interval until its status is terminal.
// onUpdate, when set, receives every snapshot including the terminal one.
// A failed fetch is retried after RetryDelay, doubling per consecutive
// failure up to MaxRetryDelay; a success resets the delay.
func (p *Poller) Poll(ctx context.Context, fetcher RunFetcher, runID string, onUpdate func(*ImportRun)) (*ImportRun, error) {
	var deadline time.Time
	if p.cfg.Timeout > 0 {
		deadline = p.clock.Now().Add(p.cfg.Timeout)
	}

	delay := p.cfg.Interval
	failures := 0
	polls := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.clock.After(delay):
		}

		if !deadline.IsZero() && !p.clock.Now().Before(deadline) {
			p.log.Warn("Polling timed out", zap.String("run_id", runID), zap.Int("polls", polls))
			return nil, ErrPollTimeout
		}

		polls++
		run, err := fetcher.Run(ctx, runID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures++
			if failures >= p.cfg.MaxRetries {
				p.log.Error("Polling gave up", zap.String("run_id", runID), zap.Int("attempts", failures), zap.Error(err))
				return nil, &RetriesExhaustedError{Attempts: failures, Err: err}
			}
			delay = p.backoff(failures)
			p.log.Warn("Run status fetch failed",
				zap.String("run_id", runID),
				zap.Int("attempt", failures),
				zap.Duration("retry_in", delay),
				zap.Error(err))
			continue
		}

		failures = 0
		delay = p.cfg.Interval

		if onUpdate != nil {
			onUpdate(run)
		}
		if run.Status.IsTerminal() {
			p.log.Info("Run finished",
				zap.String("run_id", runID),
				zap.String("status", string(run.Status)),
				zap.Int("polls", polls))
			return run, nil
		}

		// every 15 polls is 30s at the default interval
		if polls%15 == 0 {
			p.log.Info("Run still in progress",
				zap.String("run_id", runID),
				zap.String("phase", run.Phase),
				zap.Int("polls", polls))
		}
	}
}

// backoff returns the wait after the given number of consecutive failures
func (p *Poller) backoff(failures int) time.Duration {
	d := p.cfg.RetryDelay
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= p.cfg.MaxRetryDelay {
			return p.cfg.MaxRetryDelay
		}
	}
	return d
}
