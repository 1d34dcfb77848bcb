// Package events names the inbound and outbound socket events and the payloads
// they carry, plus the publisher used to mirror relay events to a stream.
package events

// Type is the name of a socket event
type Type string

// Inbound events (client -> server)
const (
	Authenticate              Type = "authenticate"
	JoinRoom                  Type = "join_room"
	LeaveRoom                 Type = "leave_room"
	Typing                    Type = "typing"
	SendPublicMessage         Type = "send_public_message"
	SendMessage               Type = "send_message"
	Notification              Type = "notification"
	CreateFollowNotification  Type = "create_follow_notification"
	CreateLikeNotification    Type = "create_like_notification"
	CreateCommentNotification Type = "create_comment_notification"
)

// Outbound events (server -> client). Notification is shared with the inbound
// generic event of the same name.
const (
	UpdateConnectedUsers Type = "update_connected_users"
	UpdateRoomUsers      Type = "update_room_users"
	UserTyping           Type = "user_typing"
	ReceivePublicMessage Type = "receive_public_message"
	ReceiveMessage       Type = "receive_message"
	Error                Type = "error"
)

// String returns the string representation of the Type
func (t Type) String() string {
	return string(t)
}

// IsInbound reports whether clients may send this event
func (t Type) IsInbound() bool {
	switch t {
	case Authenticate, JoinRoom, LeaveRoom, Typing, SendPublicMessage, SendMessage,
		Notification, CreateFollowNotification, CreateLikeNotification, CreateCommentNotification:
		return true
	default:
		return false
	}
}
