package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"brieflycloud/internal/model"
)

type ConnectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Upsert inserts the connection or, when the user already connected
// this provider, replaces the stored grant in place.
func (r *ConnectionRepository) Upsert(conn *model.StorageConnection) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "token_type", "scope",
			"expires_at", "account_email", "updated_at",
		}),
	}).Create(conn).Error
	if err != nil {
		return fmt.Errorf("upsert storage connection failed: %w", err)
	}
	return nil
}

func (r *ConnectionRepository) GetByUserAndProvider(userID uuid.UUID, provider string) (*model.StorageConnection, error) {
	var conn model.StorageConnection
	if err := r.db.Where("user_id = ? AND provider = ?", userID, provider).First(&conn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query storage connection failed: %w", err)
	}
	return &conn, nil
}

func (r *ConnectionRepository) ListByUserID(userID uuid.UUID) ([]model.StorageConnection, error) {
	var conns []model.StorageConnection
	if err := r.db.Where("user_id = ?", userID).Order("provider ASC").Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("list storage connections failed: %w", err)
	}
	return conns, nil
}

func (r *ConnectionRepository) UpdateTokens(id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	fields := map[string]any{
		"access_token": accessToken,
		"expires_at":   expiresAt,
	}
	if refreshToken != "" {
		fields["refresh_token"] = refreshToken
	}
	if err := r.db.Model(&model.StorageConnection{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("update connection tokens failed: %w", err)
	}
	return nil
}

func (r *ConnectionRepository) DeleteByUserAndProvider(userID uuid.UUID, provider string) error {
	err := r.db.Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&model.StorageConnection{}).Error
	if err != nil {
		return fmt.Errorf("delete storage connection failed: %w", err)
	}
	return nil
}
