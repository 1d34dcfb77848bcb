package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"relay-service/internal/events"
	"relay-service/internal/models"
	"relay-service/internal/presence"
	"relay-service/internal/testutil"
	"relay-service/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *testutil.FakeStore
	rooms     *presence.RoomMembership
	emitter   *testutil.RecordingEmitter
	publisher *testutil.RecordingPublisher
	relay     *Relay
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewFakeStore()
	store.AddUser("a", "anna", false)
	store.AddUser("b", "ben", true)
	store.AddUser("c", "carl", false)

	registry := presence.NewSessionRegistry(store)
	rooms := presence.NewRoomMembership()
	emitter := testutil.NewRecordingEmitter()
	publisher := &testutil.RecordingPublisher{}

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := registry.Register(ctx, "conn-"+id, id)
		require.NoError(t, err)
	}

	broadcaster := presence.NewBroadcaster(registry, rooms, emitter)
	return &fixture{
		store:     store,
		rooms:     rooms,
		emitter:   emitter,
		publisher: publisher,
		relay:     NewRelay(store, broadcaster, WithPublisher(publisher)),
	}
}

func TestPremiumGatingScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// non-premium A cannot open a conversation with premium B
	_, err := f.relay.SendPrivate(ctx, events.PrivateMessagePayload{SenderID: "a", ReceiverID: "b", Content: "hi"})
	assert.ErrorIs(t, err, ErrPremiumRequired)
	assert.Equal(t, "only premium users may initiate direct messages", apperror.Message(err))
	assert.NotContains(t, err.Error(), "ben")
	assert.Equal(t, 0, f.store.MessageCount())
	assert.Empty(t, f.emitter.Of(events.ReceiveMessage))

	// premium B can always write
	msg, err := f.relay.SendPrivate(ctx, events.PrivateMessagePayload{SenderID: "b", ReceiverID: "a", Content: "hello anna"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.MessageCount())
	assert.Len(t, f.emitter.For("conn-a", events.ReceiveMessage), 1)
	assert.Len(t, f.emitter.For("conn-b", events.ReceiveMessage), 1)
	assert.Equal(t, []string{}, msg.Medias)

	// now A may answer
	_, err = f.relay.SendPrivate(ctx, events.PrivateMessagePayload{SenderID: "a", ReceiverID: "b", Content: "hi ben"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.MessageCount())

	f.relay.WaitBackground()
	assert.Equal(t, []string{events.KindMessageSent, events.KindMessageSent}, f.publisher.Kinds())
}

func TestNonPremiumToNonPremiumDenied(t *testing.T) {
	f := newFixture(t)

	_, err := f.relay.SendPrivate(context.Background(), events.PrivateMessagePayload{SenderID: "a", ReceiverID: "c", Content: "yo"})
	assert.ErrorIs(t, err, ErrPremiumRequired)
	assert.Equal(t, "only premium users may initiate direct messages", apperror.Message(err))
	assert.Equal(t, 0, f.store.MessageCount())
}

func TestUnknownParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.relay.SendPrivate(ctx, events.PrivateMessagePayload{SenderID: "ghost", ReceiverID: "b", Content: "x"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.relay.SendPrivate(ctx, events.PrivateMessagePayload{SenderID: "a", ReceiverID: "ghost", Content: "x"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// a premium sender skips the receiver lookup entirely
	_, err = f.relay.SendPrivate(ctx, events.PrivateMessagePayload{SenderID: "b", ReceiverID: "ghost", Content: "x"})
	assert.NoError(t, err)
}

func TestPrivateWriteFailureSuppressesDelivery(t *testing.T) {
	f := newFixture(t)
	f.store.FailCreateMessage = errors.New("insert failed")

	_, err := f.relay.SendPrivate(context.Background(), events.PrivateMessagePayload{SenderID: "b", ReceiverID: "a", Content: "hello"})
	assert.ErrorIs(t, err, apperror.ErrPersistence)
	assert.Empty(t, f.emitter.Of(events.ReceiveMessage))

	f.relay.WaitBackground()
	assert.Empty(t, f.publisher.Kinds())
}

func TestPrivateMessageKeepsPayloadTimestampAndMedias(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	msg, err := f.relay.SendPrivate(context.Background(), events.PrivateMessagePayload{
		SenderID:   "b",
		ReceiverID: "a",
		Content:    "look",
		Medias:     []string{"https://cdn/x.png"},
		Timestamp:  events.Timestamp{Time: at},
	})
	require.NoError(t, err)
	assert.True(t, msg.Timestamp.Equal(at))
	assert.Equal(t, []string{"https://cdn/x.png"}, msg.Medias)
}

func TestSendPublicBroadcastsToRoomIncludingSender(t *testing.T) {
	f := newFixture(t)
	f.rooms.Join("lobby", "conn-a")
	f.rooms.Join("lobby", "conn-b")
	f.rooms.Join("other", "conn-c")

	resp, err := f.relay.SendPublic(context.Background(), events.PublicMessagePayload{SenderID: "a", RoomID: "lobby", Content: "hey all"})
	require.NoError(t, err)
	assert.Equal(t, "anna", resp.Sender.Username)

	for _, conn := range []string{"conn-a", "conn-b"} {
		got := f.emitter.For(conn, events.ReceivePublicMessage)
		require.Len(t, got, 1, conn)
		var decoded models.PublicMessageResponse
		require.NoError(t, json.Unmarshal(got[0].Payload, &decoded))
		assert.Equal(t, resp.ID, decoded.ID)
		assert.Equal(t, "a", decoded.Sender.ID)
	}
	assert.Empty(t, f.emitter.For("conn-c"))
}

func TestSendPublicWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.rooms.Join("lobby", "conn-a")
	f.store.FailCreatePublicMessage = errors.New("insert failed")

	_, err := f.relay.SendPublic(context.Background(), events.PublicMessagePayload{SenderID: "a", RoomID: "lobby", Content: "hey"})
	assert.ErrorIs(t, err, apperror.ErrPersistence)
	assert.Empty(t, f.emitter.Of(events.ReceivePublicMessage))
}

func TestSendPublicValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.relay.SendPublic(context.Background(), events.PublicMessagePayload{SenderID: "a", Content: "hey"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = f.relay.SendPublic(context.Background(), events.PublicMessagePayload{RoomID: "lobby", Content: "hey"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestSendPublicAcceptsBlankContent(t *testing.T) {
	f := newFixture(t)
	f.rooms.Join("lobby", "conn-a")

	resp, err := f.relay.SendPublic(context.Background(), events.PublicMessagePayload{SenderID: "a", RoomID: "lobby", Content: "   "})
	require.NoError(t, err)
	assert.Equal(t, "   ", resp.Content)
	assert.Len(t, f.emitter.For("conn-a", events.ReceivePublicMessage), 1)
}
