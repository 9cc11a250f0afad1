package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"brieflycloud/internal/model"
)

// ErrDuplicateKey reports a unique-constraint violation, so callers can
// distinguish "already exists" from a broken database.
var ErrDuplicateKey = errors.New("duplicate key")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *model.User) error {
	if err := r.db.Create(user).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user failed: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(email string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by email failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by id failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByStripeCustomerID(customerID string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("stripe_customer_id = ?", customerID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by stripe customer failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) UpdateFields(id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return fmt.Errorf("update user failed: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateTier(id uuid.UUID, tier string) error {
	if err := r.db.Model(&model.User{}).Where("id = ?", id).Update("tier", tier).Error; err != nil {
		return fmt.Errorf("update user tier failed: %w", err)
	}
	return nil
}

// TryIncrementUsage bumps one usage counter only while the result
// stays at or under limit, in a single guarded UPDATE so two racing
// requests cannot both slip past the quota. Returns false when the
// quota would be exceeded.
func (r *UserRepository) TryIncrementUsage(id uuid.UUID, column string, delta, limit int64) (bool, error) {
	res := r.db.Model(&model.User{}).
		Where("id = ? AND "+column+" + ? <= ?", id, delta, limit).
		Update(column, gorm.Expr(column+" + ?", delta))
	if res.Error != nil {
		return false, fmt.Errorf("increment %s failed: %w", column, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// AddUsage adjusts a counter without a quota guard. Negative deltas
// are clamped at zero.
func (r *UserRepository) AddUsage(id uuid.UUID, column string, delta int64) error {
	err := r.db.Model(&model.User{}).
		Where("id = ?", id).
		Update(column, gorm.Expr("GREATEST(0, "+column+" + ?)", delta)).Error
	if err != nil {
		return fmt.Errorf("adjust %s failed: %w", column, err)
	}
	return nil
}

// ResetPeriod zeroes the monthly counters and starts a new usage
// period. Document and storage counters track current holdings and are
// left alone.
func (r *UserRepository) ResetPeriod(id uuid.UUID, resetAt time.Time) error {
	err := r.db.Model(&model.User{}).Where("id = ?", id).Updates(map[string]any{
		"chat_messages_used": 0,
		"api_calls_used":     0,
		"usage_reset_at":     resetAt,
	}).Error
	if err != nil {
		return fmt.Errorf("reset usage period failed: %w", err)
	}
	return nil
}

func (r *UserRepository) Count() (int64, error) {
	var n int64
	if err := r.db.Model(&model.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users failed: %w", err)
	}
	return n, nil
}

func (r *UserRepository) CountByTier() (map[string]int64, error) {
	var rows []struct {
		Tier string
		N    int64
	}
	err := r.db.Model(&model.User{}).
		Select("tier, COUNT(*) AS n").
		Group("tier").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count users by tier failed: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Tier] = row.N
	}
	return out, nil
}
