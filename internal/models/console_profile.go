package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConsoleProfile is a saved connection to one tenant console deployment
type ConsoleProfile struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"unique;not null" json:"name"`
	BaseURL   string    `gorm:"not null;column:base_url" json:"base_url"`
	TenantID  string    `gorm:"not null;column:tenant_id" json:"tenant_id"`
	TokenEnc  string    `gorm:"not null;column:token_enc" json:"-"` // sealed with crypto.Vault
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate UUID before creating record
func (p *ConsoleProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

func (ConsoleProfile) TableName() string {
	return "console_profiles"
}
