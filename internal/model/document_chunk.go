package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentChunk stores one retrievable slice of a file together with
// its embedding. The vector column is queried with pgvector's cosine
// distance operator, never loaded wholesale.
type DocumentChunk struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FileID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uniq_file_chunk" json:"file_id"`
	UserID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	ChunkIndex int             `gorm:"not null;uniqueIndex:uniq_file_chunk" json:"chunk_index"`
	Content    string          `gorm:"type:text;not null" json:"content"`
	TokenCount int             `gorm:"not null;default:0" json:"token_count"`
	Embedding  pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	Metadata   datatypes.JSON  `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (c *DocumentChunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
