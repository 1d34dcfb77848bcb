package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Stream event kinds mirrored to the outbound event stream
const (
	KindNotificationCreated = "notification.created"
	KindMessageSent         = "message.sent"
	KindPublicMessageSent   = "public_message.sent"
	KindPresenceChanged     = "presence.changed"
)

// Publisher mirrors relay events to an external stream. Implementations must
// be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, kind, key string, payload any) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

const publishTimeout = 5 * time.Second

// Background runs best-effort side calls detached from the request that
// triggered them. Failures are logged and never reach the caller.
type Background struct {
	wg sync.WaitGroup
}

// Go runs fn in its own goroutine with a bounded context
func (b *Background) Go(op string, fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.Warn("Background task failed", "operation", op, "error", err)
		}
	}()
}

// Wait blocks until every task started so far has finished
func (b *Background) Wait() {
	b.wg.Wait()
}

// PublishAsync publishes on a detached goroutine. A nil publisher is a no-op.
func (b *Background) PublishAsync(p Publisher, kind, key string, payload any) {
	if p == nil {
		return
	}
	b.Go("publish "+kind, func(ctx context.Context) error {
		return p.Publish(ctx, kind, key, payload)
	})
}

// PresenceChange is the stream payload of KindPresenceChanged
type PresenceChange struct {
	UserID       string    `json:"userId"`
	ConnectionID string    `json:"connectionId"`
	Online       bool      `json:"online"`
	At           time.Time `json:"at"`
}
