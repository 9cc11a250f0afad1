package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	BackupStatusNever   = "never_run"
	BackupStatusRunning = "running"
	BackupStatusOK      = "ok"
	BackupStatusFailed  = "failed"
)

const (
	BackupProviderPITR   = "postgres_pitr"
	BackupProviderExport = "export"
)

// BackupConfig describes a backup schedule. Execution is the managed
// database's job; this row tracks intent and the last observed run.
type BackupConfig struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Provider      string     `gorm:"size:32;not null;default:postgres_pitr" json:"provider"`
	Schedule      string     `gorm:"size:64;not null" json:"schedule"`
	RetentionDays int        `gorm:"not null;default:30" json:"retention_days"`
	Enabled       bool       `gorm:"not null;default:true" json:"enabled"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastStatus    string     `gorm:"size:16;not null;default:never_run" json:"last_status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (b *BackupConfig) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
