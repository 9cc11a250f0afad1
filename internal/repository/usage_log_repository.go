package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"brieflycloud/internal/model"
)

type UsageLogRepository struct {
	db *gorm.DB
}

func NewUsageLogRepository(db *gorm.DB) *UsageLogRepository {
	return &UsageLogRepository{db: db}
}

func (r *UsageLogRepository) Create(log *model.UsageLog) error {
	if err := r.db.Create(log).Error; err != nil {
		return fmt.Errorf("create usage log failed: %w", err)
	}
	return nil
}

func (r *UsageLogRepository) ListByUserID(userID uuid.UUID, limit int) ([]model.UsageLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []model.UsageLog
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("list usage logs failed: %w", err)
	}
	return logs, nil
}

func (r *UsageLogRepository) SumByUserActionSince(userID uuid.UUID, action string, since time.Time) (int64, error) {
	var total int64
	err := r.db.Model(&model.UsageLog{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND action = ? AND created_at >= ?", userID, action, since).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum usage logs failed: %w", err)
	}
	return total, nil
}

// SumByActionSince aggregates across all users, for the admin dashboard.
func (r *UsageLogRepository) SumByActionSince(action string, since time.Time) (int64, error) {
	var total int64
	err := r.db.Model(&model.UsageLog{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("action = ? AND created_at >= ?", action, since).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum usage logs by action failed: %w", err)
	}
	return total, nil
}
