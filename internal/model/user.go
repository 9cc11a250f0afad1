package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TierFree    = "free"
	TierPro     = "pro"
	TierProByok = "pro_byok"
)

type User struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email                string    `gorm:"size:128;not null;uniqueIndex" json:"email"`
	PasswordHash         string    `gorm:"size:255;not null" json:"-"`
	Name                 string    `gorm:"size:128" json:"name"`
	Tier                 string    `gorm:"size:16;not null;default:free" json:"tier"`
	StripeCustomerID     string    `gorm:"size:64;index" json:"-"`
	StripeSubscriptionID string    `gorm:"size:64" json:"-"`
	SubscriptionStatus   string    `gorm:"size:32" json:"subscription_status,omitempty"`
	ByokAPIKey           string    `gorm:"size:255" json:"-"`
	ByokBaseURL          string    `gorm:"size:255" json:"byok_base_url,omitempty"`
	ByokModel            string    `gorm:"size:64" json:"byok_model,omitempty"`
	DocumentsUploaded    int64     `gorm:"not null;default:0" json:"documents_uploaded"`
	ChatMessagesUsed     int64     `gorm:"not null;default:0" json:"chat_messages_used"`
	APICallsUsed         int64     `gorm:"not null;default:0" json:"api_calls_used"`
	StorageUsedBytes     int64     `gorm:"not null;default:0" json:"storage_used_bytes"`
	UsageResetAt         time.Time `gorm:"not null" json:"usage_reset_at"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
