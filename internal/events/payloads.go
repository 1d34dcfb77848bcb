package events

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type AuthenticatePayload struct {
	UserID string `json:"userId"`
}

// RoomPayload accepts either a bare JSON string or {"roomId": "..."}
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

func (p *RoomPayload) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		p.RoomID = id
		return nil
	}
	type plain RoomPayload
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = RoomPayload(v)
	return nil
}

type TypingPayload struct {
	UserID   string `json:"userId"`
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

// UserTypingPayload is re-emitted to the other members of the room
type UserTypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type PublicMessagePayload struct {
	SenderID string `json:"senderId"`
	RoomID   string `json:"roomId"`
	Content  string `json:"content"`
}

type PrivateMessagePayload struct {
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Medias     []string  `json:"medias,omitempty"`
	Timestamp  Timestamp `json:"timestamp"`
}

type NotificationPayload struct {
	Type            string `json:"type"`
	PostID          string `json:"postId,omitempty"`
	PostOwnerID     string `json:"postOwnerId,omitempty"`
	PostDescription string `json:"postDescription,omitempty"`
	CommentContent  string `json:"commentContent,omitempty"`
	FollowerID      string `json:"followerId,omitempty"`
	FollowingID     string `json:"followingId,omitempty"`
	CommentID       string `json:"commentId,omitempty"`
	ReplyID         string `json:"replyId,omitempty"`
}

type FollowNotificationPayload struct {
	FollowerID  string `json:"followerId"`
	FollowingID string `json:"followingId"`
}

type LikeNotificationPayload struct {
	LikerID string `json:"likerId"`
	PostID  string `json:"postId"`
}

type CommentNotificationPayload struct {
	CommenterID string `json:"commenterId"`
	PostID      string `json:"postId"`
	CommentID   string `json:"commentId"`
}

// ErrorPayload is the body of the outbound error event
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Timestamp decodes an RFC3339 string or epoch milliseconds. Anything else
// leaves it zero.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t.Time = time.UnixMilli(ms)
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = parsed
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time)
}

// OrNow returns the timestamp, or the current time when unset
func (t Timestamp) OrNow() time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t.Time
}
