// Package messaging persists chat messages and fans them out to live
// sessions. Delivery only happens after the write succeeds.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"relay-service/internal/events"
	"relay-service/internal/models"
	"relay-service/pkg/apperror"
)

// Store is the slice of the persistent store the relay needs
type Store interface {
	FindUserByID(ctx context.Context, id string) (*models.UserProfile, error)
	HasMessageFrom(ctx context.Context, senderID, receiverID string) (bool, error)
	CreateMessage(ctx context.Context, m *models.Message) error
	CreatePublicMessage(ctx context.Context, m *models.PublicMessage) error
}

// Fanout is the delivery side of the presence broadcaster
type Fanout interface {
	EmitToRoom(roomID string, event events.Type, payload any, exceptConnID string) int
	EmitToUser(userID string, event events.Type, payload any) bool
}

var ErrPremiumRequired = apperror.PermissionDenied("only premium users may initiate direct messages")

type Relay struct {
	store     Store
	fanout    Fanout
	publisher events.Publisher
	bg        *events.Background
}

type Option func(*Relay)

func WithPublisher(p events.Publisher) Option {
	return func(r *Relay) { r.publisher = p }
}

func WithBackground(bg *events.Background) Option {
	return func(r *Relay) { r.bg = bg }
}

func NewRelay(store Store, fanout Fanout, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		fanout:    fanout,
		publisher: events.NopPublisher{},
		bg:        &events.Background{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SendPublic persists a room message and broadcasts it, sender included, to
// every connection in the room.
func (r *Relay) SendPublic(ctx context.Context, p events.PublicMessagePayload) (*models.PublicMessageResponse, error) {
	if p.SenderID == "" || p.RoomID == "" {
		return nil, apperror.Validation("senderId and roomId are required")
	}

	msg := &models.PublicMessage{
		SenderID:  p.SenderID,
		RoomID:    p.RoomID,
		Content:   p.Content,
		Timestamp: time.Now(),
	}
	if err := r.store.CreatePublicMessage(ctx, msg); err != nil {
		return nil, err
	}

	resp := msg.Response()
	sent := r.fanout.EmitToRoom(p.RoomID, events.ReceivePublicMessage, resp, "")
	slog.Info("Public message sent", "messageID", msg.ID, "roomID", p.RoomID, "recipients", sent)

	r.bg.PublishAsync(r.publisher, events.KindPublicMessageSent, p.RoomID, resp)
	return &resp, nil
}

// SendPrivate applies premium gating, persists the message, then pushes it to
// the sender's and the receiver's sessions.
func (r *Relay) SendPrivate(ctx context.Context, p events.PrivateMessagePayload) (*models.Message, error) {
	if p.SenderID == "" || p.ReceiverID == "" {
		return nil, apperror.Validation("senderId and receiverId are required")
	}
	if err := r.authorize(ctx, p.SenderID, p.ReceiverID); err != nil {
		return nil, err
	}

	medias := p.Medias
	if medias == nil {
		medias = []string{}
	}
	msg := &models.Message{
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		Content:    p.Content,
		Medias:     medias,
		Timestamp:  p.Timestamp.OrNow(),
	}
	if err := r.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	r.fanout.EmitToUser(msg.SenderID, events.ReceiveMessage, msg)
	if msg.ReceiverID != msg.SenderID {
		r.fanout.EmitToUser(msg.ReceiverID, events.ReceiveMessage, msg)
	}
	slog.Info("Private message sent", "messageID", msg.ID, "senderID", msg.SenderID, "receiverID", msg.ReceiverID)

	r.bg.PublishAsync(r.publisher, events.KindMessageSent, msg.ReceiverID, msg)
	return msg, nil
}

// authorize lets premium senders through. Anyone else may only answer a
// premium receiver who wrote to them first.
func (r *Relay) authorize(ctx context.Context, senderID, receiverID string) error {
	sender, err := r.findUser(ctx, senderID, "sender")
	if err != nil {
		return err
	}
	if sender.Premium {
		return nil
	}

	receiver, err := r.findUser(ctx, receiverID, "receiver")
	if err != nil {
		return err
	}
	if !receiver.Premium {
		return ErrPremiumRequired
	}

	answered, err := r.store.HasMessageFrom(ctx, receiverID, senderID)
	if err != nil {
		return apperror.Persistence("failed to check conversation history", err)
	}
	if !answered {
		return ErrPremiumRequired
	}
	return nil
}

func (r *Relay) findUser(ctx context.Context, id, role string) (*models.UserProfile, error) {
	u, err := r.store.FindUserByID(ctx, id)
	if err == nil {
		return u, nil
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound("%s %s not found", role, id)
	}
	return nil, fmt.Errorf("find %s: %w", role, err)
}

// WaitBackground blocks until pending stream publishes finish
func (r *Relay) WaitBackground() {
	r.bg.Wait()
}
