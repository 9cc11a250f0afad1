package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChatMessage is one persisted turn. ContextChunkIDs records which
// document chunks were put in front of the model for this answer.
type ChatMessage struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"conversation_id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Role            string         `gorm:"size:16;not null;index" json:"role"`
	Content         string         `gorm:"type:text;not null" json:"content"`
	Model           string         `gorm:"size:64" json:"model,omitempty"`
	ContextChunkIDs datatypes.JSON `gorm:"type:jsonb" json:"context_chunk_ids,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
