package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinIsIdempotent(t *testing.T) {
	rooms := NewRoomMembership()

	rooms.Join("r1", "c1")
	rooms.Join("r1", "c1")

	assert.Len(t, rooms.MembersOf("r1"), 1)
	assert.True(t, rooms.IsMember("r1", "c1"))
}

func TestLeavePrunesEmptyRoom(t *testing.T) {
	rooms := NewRoomMembership()
	rooms.Join("r1", "c1")
	rooms.Join("r1", "c2")

	assert.True(t, rooms.Leave("r1", "c2"))
	assert.Equal(t, map[string]struct{}{"c1": {}}, rooms.MembersOf("r1"))

	assert.False(t, rooms.Leave("r1", "c1"))
	assert.False(t, rooms.HasRoom("r1"))
	assert.Empty(t, rooms.Rooms())
	assert.Empty(t, rooms.MembersOf("r1"))
}

func TestLeaveUnknownRoom(t *testing.T) {
	rooms := NewRoomMembership()
	assert.False(t, rooms.Leave("nope", "c1"))
	assert.False(t, rooms.HasRoom("nope"))
}

func TestRemoveConnectionEverywhere(t *testing.T) {
	rooms := NewRoomMembership()
	rooms.Join("r1", "c1")
	rooms.Join("r1", "c2")
	rooms.Join("r2", "c1")
	rooms.Join("r3", "c1")
	rooms.Join("r3", "c3")
	rooms.Join("r4", "c2")

	affected := rooms.RemoveConnectionEverywhere("c1")

	assert.Equal(t, []string{"r1", "r3"}, affected)
	assert.False(t, rooms.HasRoom("r2"), "room left empty must be pruned")
	assert.Equal(t, []string{"r1", "r3", "r4"}, rooms.Rooms())
	for _, roomID := range rooms.Rooms() {
		assert.False(t, rooms.IsMember(roomID, "c1"))
	}
}

func TestMembershipMatchesJoinLeaveHistory(t *testing.T) {
	rooms := NewRoomMembership()
	ops := []struct {
		op   string
		room string
		conn string
	}{
		{"join", "a", "c1"}, {"join", "a", "c2"}, {"join", "b", "c2"},
		{"leave", "a", "c1"}, {"join", "a", "c3"}, {"drop", "", "c2"},
		{"join", "b", "c1"}, {"leave", "b", "c9"},
	}
	for _, o := range ops {
		switch o.op {
		case "join":
			rooms.Join(o.room, o.conn)
		case "leave":
			rooms.Leave(o.room, o.conn)
		case "drop":
			rooms.RemoveConnectionEverywhere(o.conn)
		}
	}

	assert.Equal(t, map[string]struct{}{"c3": {}}, rooms.MembersOf("a"))
	assert.Equal(t, map[string]struct{}{"c1": {}}, rooms.MembersOf("b"))
	assert.Equal(t, []string{"a", "b"}, rooms.Rooms())
}
