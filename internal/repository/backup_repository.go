package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"brieflycloud/internal/model"
)

type BackupRepository struct {
	db *gorm.DB
}

func NewBackupRepository(db *gorm.DB) *BackupRepository {
	return &BackupRepository{db: db}
}

func (r *BackupRepository) Create(cfg *model.BackupConfig) error {
	if err := r.db.Create(cfg).Error; err != nil {
		return fmt.Errorf("create backup config failed: %w", err)
	}
	return nil
}

func (r *BackupRepository) GetByIDAndUserID(id, userID uuid.UUID) (*model.BackupConfig, error) {
	var cfg model.BackupConfig
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query backup config failed: %w", err)
	}
	return &cfg, nil
}

func (r *BackupRepository) ListByUserID(userID uuid.UUID) ([]model.BackupConfig, error) {
	var cfgs []model.BackupConfig
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&cfgs).Error
	if err != nil {
		return nil, fmt.Errorf("list backup configs failed: %w", err)
	}
	return cfgs, nil
}

func (r *BackupRepository) UpdateFields(id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.db.Model(&model.BackupConfig{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("update backup config failed: %w", err)
	}
	return nil
}

func (r *BackupRepository) MarkRun(id uuid.UUID, status string, at time.Time) error {
	err := r.db.Model(&model.BackupConfig{}).Where("id = ?", id).Updates(map[string]any{
		"last_status": status,
		"last_run_at": at,
	}).Error
	if err != nil {
		return fmt.Errorf("mark backup run failed: %w", err)
	}
	return nil
}

func (r *BackupRepository) DeleteByIDAndUserID(id, userID uuid.UUID) error {
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.BackupConfig{}).Error; err != nil {
		return fmt.Errorf("delete backup config failed: %w", err)
	}
	return nil
}
