package asana

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tenant-console/internal/models"
)

// RunSink receives terminal run snapshots
type RunSink interface {
	Record(ctx context.Context, run *ImportRun, origin, sessionID string) error
}

// RunRecorder keeps a local audit copy of finished runs
type RunRecorder struct {
	db       *gorm.DB
	tenantID string
}

// NewRunRecorder creates a recorder for one tenant
func NewRunRecorder(db *gorm.DB, tenantID string) *RunRecorder {
	return &RunRecorder{db: db, tenantID: tenantID}
}

// recordColumns are rewritten when a run is recorded again; created_at is kept
var recordColumns = []string{
	"status", "phase", "source_workspace_name", "project_gids", "summary",
	"error_log", "error_count", "origin", "session_id", "run_created_at",
	"completed_at", "updated_at",
}

// Record upserts the run by tenant and server id
func (r *RunRecorder) Record(ctx context.Context, run *ImportRun, origin, sessionID string) error {
	rec, err := toRecord(run)
	if err != nil {
		return err
	}
	rec.TenantID = r.tenantID
	rec.Origin = origin
	rec.SessionID = sessionID

	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}, {Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns(recordColumns),
	}
	if err := r.db.WithContext(ctx).Clauses(upsert).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// ListRecords returns the newest records first; limit <= 0 returns all
func (r *RunRecorder) ListRecords(ctx context.Context, limit int) ([]models.ImportRunRecord, error) {
	var records []models.ImportRunRecord
	q := r.db.WithContext(ctx).Where("tenant_id = ?", r.tenantID).Order("run_created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list run records: %w", err)
	}
	return records, nil
}

// Get loads a recorded run back into its API shape
func (r *RunRecorder) Get(ctx context.Context, runID string) (*ImportRun, error) {
	var rec models.ImportRunRecord
	if err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", runID, r.tenantID).First(&rec).Error; err != nil {
		return nil, fmt.Errorf("run %s not recorded: %w", runID, err)
	}
	return FromRecord(&rec)
}

func toRecord(run *ImportRun) (*models.ImportRunRecord, error) {
	gids, err := json.Marshal(run.ProjectGIDs)
	if err != nil {
		return nil, err
	}
	errLog, err := json.Marshal(run.ErrorLog)
	if err != nil {
		return nil, err
	}

	rec := &models.ImportRunRecord{
		ID:                  run.ID,
		Status:              string(run.Status),
		Phase:               run.Phase,
		SourceWorkspaceName: run.AsanaWorkspaceName,
		ProjectGIDs:         string(gids),
		ErrorLog:            string(errLog),
		ErrorCount:          len(run.ErrorLog),
		RunCreatedAt:        run.CreatedAt,
		CompletedAt:         run.CompletedAt,
	}
	if run.ExecutionSummary != nil {
		summary, err := json.Marshal(run.ExecutionSummary)
		if err != nil {
			return nil, err
		}
		rec.Summary = string(summary)
	}
	return rec, nil
}

// FromRecord decodes a stored record
func FromRecord(rec *models.ImportRunRecord) (*ImportRun, error) {
	run := &ImportRun{
		ID:                 rec.ID,
		Status:             RunStatus(rec.Status),
		Phase:              rec.Phase,
		AsanaWorkspaceName: rec.SourceWorkspaceName,
		CreatedAt:          rec.RunCreatedAt,
		CompletedAt:        rec.CompletedAt,
	}
	if rec.ProjectGIDs != "" {
		if err := json.Unmarshal([]byte(rec.ProjectGIDs), &run.ProjectGIDs); err != nil {
			return nil, fmt.Errorf("corrupt project list for run %s: %w", rec.ID, err)
		}
	}
	if rec.ErrorLog != "" {
		if err := json.Unmarshal([]byte(rec.ErrorLog), &run.ErrorLog); err != nil {
			return nil, fmt.Errorf("corrupt error log for run %s: %w", rec.ID, err)
		}
	}
	if rec.Summary != "" {
		var counts ImportCounts
		if err := json.Unmarshal([]byte(rec.Summary), &counts); err != nil {
			return nil, fmt.Errorf("corrupt summary for run %s: %w", rec.ID, err)
		}
		run.ExecutionSummary = &counts
	}
	return run, nil
}
