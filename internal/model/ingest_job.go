package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// IngestJob tracks one provider sync from enqueue to completion so the
// client can poll progress while the worker churns through files.
type IngestJob struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Source         string     `gorm:"size:16;not null" json:"source"`
	Status         string     `gorm:"size:16;not null;default:pending;index" json:"status"`
	TotalFiles     int        `gorm:"not null;default:0" json:"total_files"`
	FilesProcessed int        `gorm:"not null;default:0" json:"files_processed"`
	FailedFiles    int        `gorm:"not null;default:0" json:"failed_files"`
	ChunksCreated  int        `gorm:"not null;default:0" json:"chunks_created"`
	Progress       int        `gorm:"not null;default:0" json:"progress"`
	Error          string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (j *IngestJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
