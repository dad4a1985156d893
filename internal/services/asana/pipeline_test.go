package asana

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-console/internal/models"
)

func TestPipeline(t *testing.T) {
	ctx := context.Background()
	poller := func() *Poller { return NewPoller(DefaultPollConfig(), WithClock(newFakeClock())) }

	t.Run("Should validate, execute, poll and record", func(t *testing.T) {
		conn := newFakeConnector()
		sink := &recordingSink{}
		var updates int

		result, err := NewPipeline(conn, poller(), sink).Run(ctx, validRequest(), models.OriginSchedule, func(*ImportRun) { updates++ })

		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, result.Run.Status)
		assert.NotNil(t, result.Validation)
		assert.Equal(t, 1, conn.validateCalls)
		assert.Equal(t, 1, conn.executeCalls)
		assert.Equal(t, 2, updates)
		assert.Equal(t, 1, sink.Len())
	})

	t.Run("Should not execute when the dry run fails", func(t *testing.T) {
		conn := newFakeConnector()
		conn.validateErr = errUpstream

		_, err := NewPipeline(conn, poller(), nil).Run(ctx, validRequest(), models.OriginSchedule, nil)

		assert.ErrorIs(t, err, errUpstream)
		assert.Equal(t, 0, conn.executeCalls)
	})

	t.Run("Should reject an invalid request locally", func(t *testing.T) {
		conn := newFakeConnector()
		req := validRequest()
		req.ProjectGIDs = nil

		_, err := NewPipeline(conn, poller(), nil).Run(ctx, req, models.OriginSchedule, nil)

		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Equal(t, 0, conn.validateCalls)
	})

	t.Run("Should keep the dry run when polling fails", func(t *testing.T) {
		conn := newFakeConnector(pollStep{err: errUpstream})
		cfg := DefaultPollConfig()
		cfg.MaxRetries = 1

		result, err := NewPipeline(conn, NewPoller(cfg, WithClock(newFakeClock())), nil).Run(ctx, validRequest(), models.OriginSchedule, nil)

		var exhausted *RetriesExhaustedError
		assert.True(t, errors.As(err, &exhausted))
		require.NotNil(t, result)
		assert.NotNil(t, result.Validation)
		assert.Nil(t, result.Run)
	})
}
