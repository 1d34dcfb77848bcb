// Package repository is the gorm-backed persistent store of the relay.
package repository

import (
	"gorm.io/gorm"
)

// Store bundles every repository. It satisfies the store interfaces of the
// presence, notification and messaging packages.
type Store struct {
	UserRepository
	PostRepository
	MessageRepository
	NotificationRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		UserRepository:         NewUserRepository(db),
		PostRepository:         NewPostRepository(db),
		MessageRepository:      NewMessageRepository(db),
		NotificationRepository: NewNotificationRepository(db),
	}
}
