package models

import (
	"time"
)

/** --------------------ENTITIES-------------------- */
// Message is a private user-to-user message
type Message struct {
	Base
	SenderID   string    `gorm:"not null;index:idx_messages_pair,priority:1;type:varchar(64)" json:"senderId"`
	ReceiverID string    `gorm:"not null;index:idx_messages_pair,priority:2;type:varchar(64)" json:"receiverId"`
	Content    string    `gorm:"type:text" json:"content"`
	Medias     []string  `gorm:"serializer:json;type:text" json:"medias"`
	Timestamp  time.Time `gorm:"not null" json:"timestamp"`
}

// PublicMessage is a room-scoped chat message. Sender is preloaded on create
// so the broadcast carries the profile needed for display.
type PublicMessage struct {
	Base
	SenderID  string    `gorm:"not null;index;type:varchar(64)" json:"senderId"`
	RoomID    string    `gorm:"not null;index;type:varchar(128)" json:"roomId"`
	Content   string    `gorm:"type:text" json:"content"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`

	Sender *User `gorm:"foreignKey:SenderID" json:"-"`
}

/** -------------------- DTOs -------------------- */
// PublicMessageResponse is the payload of receive_public_message
type PublicMessageResponse struct {
	ID        string       `json:"id"`
	SenderID  string       `json:"senderId"`
	RoomID    string       `json:"roomId"`
	Content   string       `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
	CreatedAt time.Time    `json:"createdAt"`
	Sender    PublicSender `json:"sender"`
}

func (m *PublicMessage) Response() PublicMessageResponse {
	resp := PublicMessageResponse{
		ID:        m.ID,
		SenderID:  m.SenderID,
		RoomID:    m.RoomID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		CreatedAt: m.CreatedAt,
	}
	if m.Sender != nil {
		resp.Sender = m.Sender.PublicSender()
	} else {
		resp.Sender = PublicSender{ID: m.SenderID}
	}
	return resp
}
