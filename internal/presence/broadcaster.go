package presence

import (
	"time"

	"relay-service/internal/events"
)

// Emitter delivers events to live connections. The websocket hub implements it.
type Emitter interface {
	// EmitTo sends to one connection. Unknown connections are ignored.
	EmitTo(connectionID string, event events.Type, payload any)
	// EmitAll sends to every live connection
	EmitAll(event events.Type, payload any)
}

// PresenceEntry is one user in a presence snapshot
type PresenceEntry struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Image          string `json:"image,omitempty"`
	City           string `json:"city,omitempty"`
	SocketID       string `json:"socketId"`
	FollowersCount int    `json:"followersCount"`
	ConnectedAt    string `json:"connectedAt"`
}

func entryFor(s Session) PresenceEntry {
	return PresenceEntry{
		ID:             s.UserID,
		Username:       s.Username,
		Image:          s.Image,
		City:           s.City,
		SocketID:       s.ConnectionID,
		FollowersCount: s.FollowersCount,
		ConnectedAt:    s.ConnectedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Broadcaster derives full presence snapshots and fans them out. Snapshots
// always replace the previous one on the client, so the last one sent wins.
type Broadcaster struct {
	registry *SessionRegistry
	rooms    *RoomMembership
	emitter  Emitter
}

func NewBroadcaster(registry *SessionRegistry, rooms *RoomMembership, emitter Emitter) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		rooms:    rooms,
		emitter:  emitter,
	}
}

// GlobalSnapshot lists every live session in registration order
func (b *Broadcaster) GlobalSnapshot() []PresenceEntry {
	sessions := b.registry.Snapshot()
	out := make([]PresenceEntry, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, entryFor(s))
	}
	return out
}

// RoomSnapshot lists the registered sessions whose connection is in roomID.
// Members that never authenticated are not listed.
func (b *Broadcaster) RoomSnapshot(roomID string) []PresenceEntry {
	members := b.rooms.MembersOf(roomID)
	out := make([]PresenceEntry, 0, len(members))
	if len(members) == 0 {
		return out
	}
	for _, s := range b.registry.Snapshot() {
		if _, ok := members[s.ConnectionID]; ok {
			out = append(out, entryFor(s))
		}
	}
	return out
}

// BroadcastGlobal sends update_connected_users to every connection
func (b *Broadcaster) BroadcastGlobal() {
	b.emitter.EmitAll(events.UpdateConnectedUsers, b.GlobalSnapshot())
}

// BroadcastRoom sends update_room_users to the members of roomID. Absent rooms
// get nothing.
func (b *Broadcaster) BroadcastRoom(roomID string) {
	if !b.rooms.HasRoom(roomID) {
		return
	}
	b.EmitToRoom(roomID, events.UpdateRoomUsers, b.RoomSnapshot(roomID), "")
}

// BroadcastRooms refreshes each of the given rooms
func (b *Broadcaster) BroadcastRooms(roomIDs []string) {
	for _, roomID := range roomIDs {
		b.BroadcastRoom(roomID)
	}
}

// BroadcastAllRooms refreshes every non-empty room
func (b *Broadcaster) BroadcastAllRooms() {
	b.BroadcastRooms(b.rooms.Rooms())
}

// EmitToRoom sends an event to every member of roomID except exceptConnID
func (b *Broadcaster) EmitToRoom(roomID string, event events.Type, payload any, exceptConnID string) int {
	sent := 0
	for connID := range b.rooms.MembersOf(roomID) {
		if connID == exceptConnID {
			continue
		}
		b.emitter.EmitTo(connID, event, payload)
		sent++
	}
	return sent
}

// EmitToUser sends an event to the live session of userID. It reports whether
// the user was online.
func (b *Broadcaster) EmitToUser(userID string, event events.Type, payload any) bool {
	sess := b.registry.FindByUser(userID)
	if sess == nil {
		return false
	}
	b.emitter.EmitTo(sess.ConnectionID, event, payload)
	return true
}
