package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"relay-service/internal/models"
	"relay-service/internal/notification"
	"relay-service/pkg/apperror"

	kafkago "github.com/segmentio/kafka-go"
)

// DomainEvent is a like, comment or follow emitted by the main application
type DomainEvent struct {
	Type            string `json:"type"`
	ActorID         string `json:"actorId"`
	PostID          string `json:"postId,omitempty"`
	PostOwnerID     string `json:"postOwnerId,omitempty"`
	PostDescription string `json:"postDescription,omitempty"`
	CommentID       string `json:"commentId,omitempty"`
	CommentContent  string `json:"commentContent,omitempty"`
	ReplyID         string `json:"replyId,omitempty"`
	FollowingID     string `json:"followingId,omitempty"`
}

// Request converts the event to a router request. For follows the actor is
// the follower.
func (e DomainEvent) Request() notification.Request {
	req := notification.Request{
		Type:            e.Type,
		Origin:          notification.OriginStream,
		ActorID:         e.ActorID,
		PostID:          e.PostID,
		PostOwnerID:     e.PostOwnerID,
		PostDescription: e.PostDescription,
		CommentID:       e.CommentID,
		CommentContent:  e.CommentContent,
		ReplyID:         e.ReplyID,
		FollowingID:     e.FollowingID,
	}
	if e.Type == notification.TypeFollow {
		req.FollowerID = e.ActorID
	}
	return req
}

// DecodeDomainEvent parses a message value
func DecodeDomainEvent(value []byte) (DomainEvent, error) {
	var e DomainEvent
	if err := json.Unmarshal(value, &e); err != nil {
		return DomainEvent{}, apperror.Validation("malformed domain event: %v", err)
	}
	if e.Type == "" || e.ActorID == "" {
		return DomainEvent{}, apperror.Validation("domain event requires type and actorId")
	}
	return e, nil
}

// MessageReader is the part of *kafkago.Reader the consumer uses
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NotificationRouter is satisfied by *notification.Router
type NotificationRouter interface {
	Route(ctx context.Context, req notification.Request) (*models.Notification, error)
}

// Consumer feeds domain events into the notification router
type Consumer struct {
	reader MessageReader
	router NotificationRouter
}

func NewReader(brokers []string, topic, groupID string) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        time.Second,
		CommitInterval: 0,
		StartOffset:    kafkago.LastOffset,
	})
}

func NewConsumer(reader MessageReader, router NotificationRouter) *Consumer {
	return &Consumer{reader: reader, router: router}
}

// Run consumes until ctx is cancelled. Every fetched message is committed
// once handled, including ones that could not be routed: a bad event is
// logged and skipped rather than retried forever.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("Domain event consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				slog.Info("Domain event consumer stopped")
				return nil
			}
			return fmt.Errorf("fetch domain event: %w", err)
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) {
	event, err := DecodeDomainEvent(msg.Value)
	if err != nil {
		slog.Warn("Skipping domain event", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		return
	}

	n, err := c.router.Route(ctx, event.Request())
	if err != nil {
		slog.Warn("Domain event not routed", "type", event.Type, "actorID", event.ActorID, "error", err)
		return
	}
	if n == nil {
		slog.Debug("Domain event suppressed", "type", event.Type, "actorID", event.ActorID)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
