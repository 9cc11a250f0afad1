package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	FileStatusPending    = "pending"
	FileStatusProcessing = "processing"
	FileStatusCompleted  = "completed"
	FileStatusFailed     = "failed"
)

// File is one ingested document. ProviderFileID is the provider's own
// identifier so re-syncs update in place instead of duplicating.
type File struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uniq_user_provider_file" json:"user_id"`
	Provider       string         `gorm:"size:16;not null;uniqueIndex:uniq_user_provider_file" json:"provider"`
	ProviderFileID string         `gorm:"size:256;not null;uniqueIndex:uniq_user_provider_file" json:"provider_file_id"`
	Name           string         `gorm:"size:256;not null" json:"name"`
	MimeType       string         `gorm:"size:128" json:"mime_type"`
	SizeBytes      int64          `gorm:"not null;default:0" json:"size_bytes"`
	Checksum       string         `gorm:"size:64" json:"checksum,omitempty"`
	Status         string         `gorm:"size:16;not null;default:pending;index" json:"status"`
	ChunkCount     int            `gorm:"not null;default:0" json:"chunk_count"`
	Error          string         `gorm:"type:text" json:"error,omitempty"`
	Metadata       datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	LastSyncedAt   *time.Time     `json:"last_synced_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
