package asana

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-console/internal/database"
	"tenant-console/internal/models"
)

func TestRunRecorder(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	recorder := NewRunRecorder(db, "tenant-1")
	completed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Should store and reload a terminal run", func(t *testing.T) {
		run := &ImportRun{
			ID:                 "run-1",
			Status:             StatusCompletedWithErrors,
			Phase:              "done",
			AsanaWorkspaceName: "Acme",
			ProjectGIDs:        []string{"p-1", "p-2"},
			ExecutionSummary:   &ImportCounts{Tasks: EntityCounts{Create: 4, Error: 1}},
			ErrorLog:           []ImportError{{EntityType: "task", SourceID: "t-1", Name: "A", Message: "bad"}},
			CreatedAt:          completed.Add(-time.Hour),
			CompletedAt:        &completed,
		}

		require.NoError(t, recorder.Record(ctx, run, models.OriginWizard, "sess-1"))

		got, err := recorder.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, run.Status, got.Status)
		assert.Equal(t, run.ProjectGIDs, got.ProjectGIDs)
		assert.Equal(t, run.ErrorLog, got.ErrorLog)
		assert.Equal(t, 4, got.ExecutionSummary.Tasks.Create)
	})

	t.Run("Should upsert by run id", func(t *testing.T) {
		run := &ImportRun{ID: "run-2", Status: StatusFailed, CreatedAt: completed}
		require.NoError(t, recorder.Record(ctx, run, models.OriginSchedule, ""))
		run.Phase = "rolled back"
		require.NoError(t, recorder.Record(ctx, run, models.OriginSchedule, ""))

		records, err := recorder.ListRecords(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, "run-2", records[0].ID)
		assert.Equal(t, "rolled back", records[0].Phase)
		assert.Equal(t, models.OriginSchedule, records[0].Origin)
	})

	t.Run("Should scope records to the tenant", func(t *testing.T) {
		other := NewRunRecorder(db, "tenant-2")
		records, err := other.ListRecords(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, records)

		_, err = other.Get(ctx, "run-1")
		assert.Error(t, err)
	})

	t.Run("Should keep the same run id apart per tenant", func(t *testing.T) {
		other := NewRunRecorder(db, "tenant-2")
		require.NoError(t, other.Record(ctx, &ImportRun{ID: "run-1", Status: StatusFailed, CreatedAt: completed}, models.OriginCLI, ""))

		mine, err := recorder.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, StatusCompletedWithErrors, mine.Status)

		theirs, err := other.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, theirs.Status)
	})

	t.Run("Should keep the first created_at when recording again", func(t *testing.T) {
		run := &ImportRun{ID: "run-3", Status: StatusRunning, CreatedAt: completed}
		require.NoError(t, recorder.Record(ctx, run, models.OriginWizard, "sess-3"))

		var first models.ImportRunRecord
		require.NoError(t, db.First(&first, "id = ? AND tenant_id = ?", "run-3", "tenant-1").Error)
		require.False(t, first.CreatedAt.IsZero())

		run.Status = StatusCompleted
		require.NoError(t, recorder.Record(ctx, run, models.OriginWizard, "sess-3"))

		var second models.ImportRunRecord
		require.NoError(t, db.First(&second, "id = ? AND tenant_id = ?", "run-3", "tenant-1").Error)
		assert.Equal(t, string(StatusCompleted), second.Status)
		assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	})
}
