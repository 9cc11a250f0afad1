package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProviderGoogleDrive = "google_drive"
	ProviderOneDrive    = "onedrive"
	ProviderUpload      = "upload"
)

// StorageConnection holds the OAuth grant for one user on one cloud
// storage provider. Tokens never leave the server.
type StorageConnection struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uniq_user_provider" json:"user_id"`
	Provider     string    `gorm:"size:16;not null;uniqueIndex:uniq_user_provider" json:"provider"`
	AccessToken  string    `gorm:"type:text;not null" json:"-"`
	RefreshToken string    `gorm:"type:text" json:"-"`
	TokenType    string    `gorm:"size:32" json:"-"`
	Scope        string    `gorm:"type:text" json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	AccountEmail string    `gorm:"size:128" json:"account_email"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c *StorageConnection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
