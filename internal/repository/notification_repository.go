package repository

import (
	"context"

	"relay-service/internal/models"

	"gorm.io/gorm"
)

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListUnread(ctx context.Context, userID string, limit int) ([]models.Notification, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return writeError(err, "notification")
	}
	return nil
}

func (r *notificationRepository) ListUnread(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := r.db.WithContext(ctx).
		Where(map[string]any{"user_id": userID, "read": false}).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, lookupError(err, "notifications", userID)
	}
	return out, nil
}
