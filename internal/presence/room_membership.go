package presence

import (
	"sort"
	"sync"
)

type connSet map[string]struct{}

// RoomMembership tracks which connections are joined to which rooms. A room
// entry exists only while its member set is non-empty.
type RoomMembership struct {
	mu    sync.RWMutex
	rooms map[string]connSet
}

func NewRoomMembership() *RoomMembership {
	return &RoomMembership{
		rooms: make(map[string]connSet),
	}
}

// Join adds connectionID to roomID. Joining twice is a no-op.
func (m *RoomMembership) Join(roomID, connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[roomID]
	if !ok {
		members = make(connSet)
		m.rooms[roomID] = members
	}
	members[connectionID] = struct{}{}
}

// Leave removes connectionID from roomID, pruning the room when it empties.
// It reports whether the room still has members.
func (m *RoomMembership) Leave(roomID, connectionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	members, ok := m.rooms[roomID]
	if !ok {
		return false
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(m.rooms, roomID)
		return false
	}
	return true
}

// RemoveConnectionEverywhere drops connectionID from every room it belongs to
// and returns, sorted, the rooms that lost it and still have members.
func (m *RoomMembership) RemoveConnectionEverywhere(connectionID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	affected := make([]string, 0)
	for roomID, members := range m.rooms {
		if _, ok := members[connectionID]; !ok {
			continue
		}
		delete(members, connectionID)
		if len(members) == 0 {
			delete(m.rooms, roomID)
			continue
		}
		affected = append(affected, roomID)
	}
	sort.Strings(affected)
	return affected
}

// MembersOf returns a copy of the room's member set, empty if the room is absent
func (m *RoomMembership) MembersOf(roomID string) map[string]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]struct{}, len(m.rooms[roomID]))
	for connID := range m.rooms[roomID] {
		out[connID] = struct{}{}
	}
	return out
}

func (m *RoomMembership) IsMember(roomID, connectionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.rooms[roomID][connectionID]
	return ok
}

// HasRoom reports whether roomID currently has members
func (m *RoomMembership) HasRoom(roomID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.rooms[roomID]
	return ok
}

// Rooms returns the ids of every non-empty room, sorted
func (m *RoomMembership) Rooms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.rooms))
	for roomID := range m.rooms {
		out = append(out, roomID)
	}
	sort.Strings(out)
	return out
}
