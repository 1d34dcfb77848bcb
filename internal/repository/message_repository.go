package repository

import (
	"context"

	"relay-service/internal/models"

	"gorm.io/gorm"
)

type MessageRepository interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	CreatePublicMessage(ctx context.Context, msg *models.PublicMessage) error
	HasMessageFrom(ctx context.Context, senderID, receiverID string) (bool, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return writeError(err, "message")
	}
	return nil
}

// CreatePublicMessage inserts msg and loads its sender for display
func (r *messageRepository) CreatePublicMessage(ctx context.Context, msg *models.PublicMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sender").Create(msg).Error; err != nil {
			return writeError(err, "public message")
		}
		var sender models.User
		if err := tx.Where("id = ?", msg.SenderID).First(&sender).Error; err != nil {
			return lookupError(err, "user", msg.SenderID)
		}
		msg.Sender = &sender
		return nil
	})
}

func (r *messageRepository) HasMessageFrom(ctx context.Context, senderID, receiverID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, lookupError(err, "message history", senderID)
	}
	return count > 0, nil
}
