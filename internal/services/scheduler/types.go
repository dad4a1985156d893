package scheduler

import (
	"context"

	"tenant-console/internal/services/asana"
)

// ImportRunner executes one headless import for a tenant
type ImportRunner interface {
	RunImport(ctx context.Context, tenantID string, req asana.ImportRequest) (*asana.ImportRun, error)
}

// JobListResponse represents a scheduled import in list responses
type JobListResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	TenantID  string  `json:"tenant_id"`
	Cron      string  `json:"cron"`
	Timezone  string  `json:"timezone"`
	Enabled   bool    `json:"enabled"`
	Workspace string  `json:"workspace"`
	Projects  int     `json:"projects"`
	LastRunID string  `json:"last_run_id,omitempty"`
	LastError string  `json:"last_error,omitempty"`
	LastRunAt *string `json:"last_run_at"` // ISO 8601 format
	NextRun   *string `json:"next_run"`    // ISO 8601 format
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// UpsertJobRequest creates or updates a scheduled import by name
type UpsertJobRequest struct {
	Name     string              `json:"name"`
	TenantID string              `json:"tenant_id"`
	Cron     string              `json:"cron"`
	Timezone string              `json:"timezone"`
	Enabled  bool                `json:"enabled"`
	Request  asana.ImportRequest `json:"request"`
}
