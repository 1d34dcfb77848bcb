package presence

import (
	"context"
	"encoding/json"
	"testing"

	"relay-service/internal/events"
	"relay-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBroadcasterFixture(t *testing.T) (*Broadcaster, *SessionRegistry, *RoomMembership, *testutil.RecordingEmitter) {
	t.Helper()
	store := testutil.NewFakeStore()
	store.AddUser("uc", "carol", false)
	store.AddUser("ud", "dave", true)
	registry := NewSessionRegistry(store)
	rooms := NewRoomMembership()
	emitter := testutil.NewRecordingEmitter()
	return NewBroadcaster(registry, rooms, emitter), registry, rooms, emitter
}

func decodeEntries(t *testing.T, raw json.RawMessage) []PresenceEntry {
	t.Helper()
	var out []PresenceEntry
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestGlobalSnapshotReachesEveryConnection(t *testing.T) {
	b, registry, _, emitter := newBroadcasterFixture(t)
	emitter.Connect("c-carol", "c-dave", "c-anon")
	ctx := context.Background()

	_, err := registry.Register(ctx, "c-carol", "uc")
	require.NoError(t, err)
	_, err = registry.Register(ctx, "c-dave", "ud")
	require.NoError(t, err)

	b.BroadcastGlobal()

	for _, conn := range []string{"c-carol", "c-dave", "c-anon"} {
		got := emitter.For(conn, events.UpdateConnectedUsers)
		require.Len(t, got, 1, conn)
		entries := decodeEntries(t, got[0].Payload)
		require.Len(t, entries, 2)
		assert.Equal(t, "uc", entries[0].ID)
		assert.Equal(t, "c-carol", entries[0].SocketID)
		assert.Equal(t, "ud", entries[1].ID)
	}
}

func TestRoomSnapshotOnlyListsRegisteredMembers(t *testing.T) {
	b, registry, rooms, _ := newBroadcasterFixture(t)
	ctx := context.Background()

	_, err := registry.Register(ctx, "c-carol", "uc")
	require.NoError(t, err)
	_, err = registry.Register(ctx, "c-dave", "ud")
	require.NoError(t, err)

	rooms.Join("r1", "c-carol")
	rooms.Join("r1", "c-anon")

	entries := b.RoomSnapshot("r1")
	require.Len(t, entries, 1)
	assert.Equal(t, "carol", entries[0].Username)
	assert.Empty(t, b.RoomSnapshot("missing"))
}

func TestRoomLeaveScenario(t *testing.T) {
	b, registry, rooms, emitter := newBroadcasterFixture(t)
	ctx := context.Background()
	_, err := registry.Register(ctx, "c-carol", "uc")
	require.NoError(t, err)
	_, err = registry.Register(ctx, "c-dave", "ud")
	require.NoError(t, err)

	rooms.Join("r1", "c-carol")
	rooms.Join("r1", "c-dave")
	emitter.Reset()

	if rooms.Leave("r1", "c-dave") {
		b.BroadcastRoom("r1")
	}

	got := emitter.For("c-carol", events.UpdateRoomUsers)
	require.Len(t, got, 1)
	entries := decodeEntries(t, got[0].Payload)
	require.Len(t, entries, 1)
	assert.Equal(t, "uc", entries[0].ID)
	assert.Empty(t, emitter.For("c-dave"))

	rooms.Leave("r1", "c-carol")
	assert.False(t, rooms.HasRoom("r1"))

	emitter.Reset()
	b.BroadcastRoom("r1")
	assert.Empty(t, emitter.Of(events.UpdateRoomUsers))
}

func TestEmitToRoomSkipsSender(t *testing.T) {
	b, _, rooms, emitter := newBroadcasterFixture(t)
	rooms.Join("r1", "c1")
	rooms.Join("r1", "c2")
	rooms.Join("r2", "c3")

	sent := b.EmitToRoom("r1", events.UserTyping, events.UserTypingPayload{UserID: "u1"}, "c1")

	assert.Equal(t, 1, sent)
	assert.Len(t, emitter.For("c2", events.UserTyping), 1)
	assert.Empty(t, emitter.For("c1"))
	assert.Empty(t, emitter.For("c3"))
}

func TestEmitToUser(t *testing.T) {
	b, registry, _, emitter := newBroadcasterFixture(t)
	_, err := registry.Register(context.Background(), "c-dave", "ud")
	require.NoError(t, err)

	assert.True(t, b.EmitToUser("ud", events.Notification, map[string]string{"title": "hi"}))
	assert.False(t, b.EmitToUser("uc", events.Notification, map[string]string{"title": "hi"}))
	assert.Len(t, emitter.For("c-dave", events.Notification), 1)
}
