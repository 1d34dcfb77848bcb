package models

// NotificationType is the stored type tag of a notification
type NotificationType string

const (
	NotificationTypeLike    NotificationType = "like"
	NotificationTypeComment NotificationType = "comment"
	NotificationTypeFollow  NotificationType = "follow"
)

// Notification is created once per qualifying domain event and never mutated
// by the relay afterwards.
type Notification struct {
	Base
	UserID  string           `gorm:"not null;index;type:varchar(64)" json:"userId"`
	Type    NotificationType `gorm:"not null;type:varchar(20)" json:"type"`
	Title   string           `gorm:"not null" json:"title"`
	Message string           `gorm:"type:text" json:"message"`
	Data    map[string]any   `gorm:"serializer:json;type:text" json:"data"`
	Read    bool             `gorm:"not null;default:false" json:"read"`
}

// AllModels lists the entities migrated by the relay
func AllModels() []any {
	return []any{
		&User{},
		&Follow{},
		&Post{},
		&Comment{},
		&Message{},
		&PublicMessage{},
		&Notification{},
	}
}
