package repository

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"brieflycloud/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *model.ChatMessage) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("create chat message failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListByConversationID(conversationID uuid.UUID, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var messages []model.ChatMessage
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list chat messages failed: %w", err)
	}
	return messages, nil
}

// ListRecent returns the newest messages flipped back into
// chronological order, for prompt history.
func (r *MessageRepository) ListRecent(conversationID uuid.UUID, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = 10
	}

	var messages []model.ChatMessage
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list recent chat messages failed: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MessageRepository) DeleteByConversationID(conversationID uuid.UUID) error {
	err := r.db.Where("conversation_id = ?", conversationID).Delete(&model.ChatMessage{}).Error
	if err != nil {
		return fmt.Errorf("delete chat messages failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) Count() (int64, error) {
	var n int64
	if err := r.db.Model(&model.ChatMessage{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chat messages failed: %w", err)
	}
	return n, nil
}
