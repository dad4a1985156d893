package models

import "time"

// Run origins
const (
	OriginWizard   = "wizard"
	OriginSchedule = "schedule"
	OriginCLI      = "cli"
)

// ImportRunRecord is the local audit copy of a terminal import run snapshot.
// The server owns the run; this row is written once when the console
// observes it reach a terminal status. Run ids are only unique per tenant.
type ImportRunRecord struct {
	ID                  string     `gorm:"primaryKey" json:"id"` // server run id
	TenantID            string     `gorm:"primaryKey;index;column:tenant_id" json:"tenant_id"`
	Status              string     `gorm:"not null" json:"status"`
	Phase               string     `json:"phase"`
	SourceWorkspaceName string     `gorm:"column:source_workspace_name" json:"source_workspace_name"`
	ProjectGIDs         string     `gorm:"type:text;column:project_gids" json:"project_gids"` // JSON array
	Summary             string     `gorm:"type:text" json:"summary"`                          // JSON ImportCounts
	ErrorLog            string     `gorm:"type:text;column:error_log" json:"error_log"`       // JSON []ImportError
	ErrorCount          int        `gorm:"column:error_count" json:"error_count"`
	Origin              string     `gorm:"not null;default:wizard" json:"origin"`
	SessionID           string     `gorm:"column:session_id" json:"session_id,omitempty"`
	RunCreatedAt        time.Time  `gorm:"column:run_created_at" json:"run_created_at"`
	CompletedAt         *time.Time `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (ImportRunRecord) TableName() string {
	return "import_run_records"
}
