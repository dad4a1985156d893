package asana

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller(t *testing.T) {
	ctx := context.Background()

	t.Run("Should fetch exactly once per interval until terminal", func(t *testing.T) {
		clock := newFakeClock()
		fetcher := &scriptedFetcher{steps: []pollStep{
			{status: StatusPending}, {status: StatusRunning}, {status: StatusRunning}, {status: StatusCompleted},
		}}
		var seen []RunStatus

		run, err := NewPoller(DefaultPollConfig(), WithClock(clock)).Poll(ctx, fetcher, "run-1", func(r *ImportRun) {
			seen = append(seen, r.Status)
		})

		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, run.Status)
		assert.Equal(t, 4, fetcher.Calls())
		assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second}, clock.Waits())
		assert.Equal(t, []RunStatus{StatusPending, StatusRunning, StatusRunning, StatusCompleted}, seen)
	})

	t.Run("Should treat every terminal status as final", func(t *testing.T) {
		for _, status := range []RunStatus{StatusCompleted, StatusCompletedWithErrors, StatusFailed} {
			fetcher := &scriptedFetcher{steps: []pollStep{{status: status}}}
			run, err := NewPoller(DefaultPollConfig(), WithClock(newFakeClock())).Poll(ctx, fetcher, "r", nil)
			require.NoError(t, err)
			assert.Equal(t, status, run.Status)
			assert.Equal(t, 1, fetcher.Calls())
		}
	})

	t.Run("Should back off on consecutive failures and reset after success", func(t *testing.T) {
		clock := newFakeClock()
		fetcher := &scriptedFetcher{steps: []pollStep{
			{err: errUpstream}, {err: errUpstream}, {status: StatusRunning}, {err: errUpstream}, {status: StatusCompleted},
		}}

		_, err := NewPoller(DefaultPollConfig(), WithClock(clock)).Poll(ctx, fetcher, "run-1", nil)

		require.NoError(t, err)
		assert.Equal(t, []time.Duration{
			2 * time.Second, 3 * time.Second, 6 * time.Second, 2 * time.Second, 3 * time.Second,
		}, clock.Waits())
	})

	t.Run("Should give up after max consecutive failures", func(t *testing.T) {
		cfg := DefaultPollConfig()
		cfg.MaxRetries = 3
		fetcher := &scriptedFetcher{steps: []pollStep{{err: errUpstream}}}

		run, err := NewPoller(cfg, WithClock(newFakeClock())).Poll(ctx, fetcher, "run-1", nil)

		assert.Nil(t, run)
		var exhausted *RetriesExhaustedError
		require.True(t, errors.As(err, &exhausted))
		assert.Equal(t, 3, exhausted.Attempts)
		assert.ErrorIs(t, err, errUpstream)
		assert.Equal(t, 3, fetcher.Calls())
	})

	t.Run("Should cap the retry delay", func(t *testing.T) {
		p := NewPoller(DefaultPollConfig())
		var got []time.Duration
		for i := 1; i <= 6; i++ {
			got = append(got, p.backoff(i))
		}
		assert.Equal(t, []time.Duration{
			3 * time.Second, 6 * time.Second, 12 * time.Second, 24 * time.Second, 30 * time.Second, 30 * time.Second,
		}, got)
	})

	t.Run("Should stop at the wall clock timeout", func(t *testing.T) {
		cfg := DefaultPollConfig()
		cfg.Timeout = 5 * time.Second
		fetcher := &scriptedFetcher{steps: []pollStep{{status: StatusRunning}}}

		_, err := NewPoller(cfg, WithClock(newFakeClock())).Poll(ctx, fetcher, "run-1", nil)

		assert.ErrorIs(t, err, ErrPollTimeout)
		assert.Equal(t, 2, fetcher.Calls())
	})

	t.Run("Should return promptly when cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		fetcher := &scriptedFetcher{steps: []pollStep{{status: StatusRunning}}}
		errCh := make(chan error, 1)

		go func() {
			_, err := NewPoller(DefaultPollConfig(), WithClock(stoppedClock{})).Poll(cctx, fetcher, "run-1", nil)
			errCh <- err
		}()
		cancel()

		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("poll did not stop after cancel")
		}
		assert.Equal(t, 0, fetcher.Calls())
	})

	t.Run("Should fill zero config values with defaults", func(t *testing.T) {
		cfg := NewPoller(PollConfig{}).Config()
		assert.Equal(t, 2*time.Second, cfg.Interval)
		assert.Equal(t, 3*time.Second, cfg.RetryDelay)
		assert.Equal(t, 10, cfg.MaxRetries)
	})
}
