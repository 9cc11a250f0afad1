package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	UsageActionDocumentUpload = "document_upload"
	UsageActionChatMessage    = "chat_message"
	UsageActionAPICall        = "api_call"
	UsageActionStorage        = "storage"
)

type UsageLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Action    string         `gorm:"size:32;not null;index" json:"action"`
	Amount    int64          `gorm:"not null;default:1" json:"amount"`
	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (l *UsageLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
