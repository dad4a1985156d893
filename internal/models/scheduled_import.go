package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScheduledImport is a recurring Asana import driven by a cron expression
type ScheduledImport struct {
	ID        string     `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"unique;not null" json:"name"`
	TenantID  string     `gorm:"not null;column:tenant_id" json:"tenant_id"`
	Cron      string     `gorm:"not null" json:"cron"` // 6-field, seconds first
	Timezone  string     `gorm:"default:UTC" json:"timezone"`
	Payload   string     `gorm:"type:text" json:"payload"` // JSON import request
	Enabled   bool       `gorm:"not null" json:"enabled"`
	LastRunID string     `gorm:"column:last_run_id" json:"last_run_id,omitempty"`
	LastError string     `gorm:"type:text;column:last_error" json:"last_error,omitempty"`
	LastRunAt *time.Time `gorm:"column:last_run_at" json:"last_run_at"`
	NextRunAt *time.Time `gorm:"column:next_run_at" json:"next_run_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating record
func (sj *ScheduledImport) BeforeCreate(tx *gorm.DB) error {
	if sj.ID == "" {
		sj.ID = uuid.New().String()
	}
	return nil
}

func (ScheduledImport) TableName() string {
	return "scheduled_imports"
}
