package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"brieflycloud/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(conv *model.Conversation) error {
	if err := r.db.Create(conv).Error; err != nil {
		return fmt.Errorf("create conversation failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) GetByIDAndUserID(id, userID uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query conversation failed: %w", err)
	}
	return &conv, nil
}

func (r *ConversationRepository) ListByUserID(userID uuid.UUID) ([]model.Conversation, error) {
	var convs []model.Conversation
	if err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return convs, nil
}

func (r *ConversationRepository) UpdateTitle(id uuid.UUID, title string) error {
	if err := r.db.Model(&model.Conversation{}).Where("id = ?", id).Update("title", title).Error; err != nil {
		return fmt.Errorf("update conversation title failed: %w", err)
	}
	return nil
}

// Touch bumps updated_at so recently used conversations sort first.
func (r *ConversationRepository) Touch(id uuid.UUID) error {
	err := r.db.Model(&model.Conversation{}).Where("id = ?", id).
		Update("updated_at", gorm.Expr("NOW()")).Error
	if err != nil {
		return fmt.Errorf("touch conversation failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) DeleteByIDAndUserID(id, userID uuid.UUID) error {
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Conversation{}).Error; err != nil {
		return fmt.Errorf("delete conversation failed: %w", err)
	}
	return nil
}
