// Package notification turns domain actions (likes, comments, follows) into
// persisted notifications and pushes them to the target user's live session.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"relay-service/internal/events"
	"relay-service/internal/models"
	"relay-service/internal/presence"
	"relay-service/pkg/apperror"
)

// Branch tags accepted by Route
const (
	TypeLike         = "like"
	TypeComment      = "comment"
	TypeFollow       = "follow"
	TypeCommentLike  = "comment_like"
	TypeCommentReply = "comment_reply"
)

// Origin tells where a request came from. It decides how the actor is
// resolved, never how the notification is composed.
type Origin int

const (
	// OriginSession is the generic notification event; the actor is the
	// session bound to the connection.
	OriginSession Origin = iota
	// OriginExplicit is one of the create_*_notification events; the actor
	// comes from the payload.
	OriginExplicit
	// OriginStream is a domain event read from the broker
	OriginStream
)

var ErrNoSession = errors.New("connection has no session")

// Store is the slice of the persistent store the router needs
type Store interface {
	FindUserByID(ctx context.Context, id string) (*models.UserProfile, error)
	FindPostOwner(ctx context.Context, postID string) (string, error)
	FindComment(ctx context.Context, commentID string) (*models.Comment, error)
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Deliverer pushes an event to a user's live session, if any
type Deliverer interface {
	EmitToUser(userID string, event events.Type, payload any) bool
}

// SessionLookup resolves the session bound to a connection
type SessionLookup interface {
	FindByConnection(connectionID string) *presence.Session
}

// Request is a normalized notification request
type Request struct {
	Type            string
	Origin          Origin
	ActorID         string
	PostID          string
	PostOwnerID     string
	PostDescription string
	CommentContent  string
	FollowerID      string
	FollowingID     string
	CommentID       string
	ReplyID         string
}

type Router struct {
	store     Store
	deliverer Deliverer
	sessions  SessionLookup
	publisher events.Publisher
	bg        *events.Background
	branches  map[string]branch
}

type Option func(*Router)

func WithPublisher(p events.Publisher) Option {
	return func(r *Router) { r.publisher = p }
}

func WithBackground(bg *events.Background) Option {
	return func(r *Router) { r.bg = bg }
}

func NewRouter(store Store, deliverer Deliverer, sessions SessionLookup, opts ...Option) *Router {
	r := &Router{
		store:     store,
		deliverer: deliverer,
		sessions:  sessions,
		publisher: events.NopPublisher{},
		bg:        &events.Background{},
		branches:  defaultBranches(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch handles the generic notification event sent by connectionID. The
// acting user is the session bound to the connection.
func (r *Router) Dispatch(ctx context.Context, connectionID string, p events.NotificationPayload) (*models.Notification, error) {
	sess := r.sessions.FindByConnection(connectionID)
	if sess == nil {
		return nil, ErrNoSession
	}
	return r.Route(ctx, Request{
		Type:            p.Type,
		Origin:          OriginSession,
		ActorID:         sess.UserID,
		PostID:          p.PostID,
		PostOwnerID:     p.PostOwnerID,
		PostDescription: p.PostDescription,
		CommentContent:  p.CommentContent,
		FollowerID:      p.FollowerID,
		FollowingID:     p.FollowingID,
		CommentID:       p.CommentID,
		ReplyID:         p.ReplyID,
	})
}

func (r *Router) CreateFollowNotification(ctx context.Context, p events.FollowNotificationPayload) (*models.Notification, error) {
	return r.Route(ctx, Request{
		Type:        TypeFollow,
		Origin:      OriginExplicit,
		ActorID:     p.FollowerID,
		FollowerID:  p.FollowerID,
		FollowingID: p.FollowingID,
	})
}

func (r *Router) CreateLikeNotification(ctx context.Context, p events.LikeNotificationPayload) (*models.Notification, error) {
	return r.Route(ctx, Request{
		Type:    TypeLike,
		Origin:  OriginExplicit,
		ActorID: p.LikerID,
		PostID:  p.PostID,
	})
}

func (r *Router) CreateCommentNotification(ctx context.Context, p events.CommentNotificationPayload) (*models.Notification, error) {
	return r.Route(ctx, Request{
		Type:      TypeComment,
		Origin:    OriginExplicit,
		ActorID:   p.CommenterID,
		PostID:    p.PostID,
		CommentID: p.CommentID,
	})
}

// Route runs req through its branch: validate, resolve the target, suppress
// self-actions, look up the actor, persist, deliver. A suppressed request
// returns (nil, nil).
func (r *Router) Route(ctx context.Context, req Request) (*models.Notification, error) {
	b, ok := r.branches[req.Type]
	if !ok {
		return nil, apperror.Validation("unknown notification type %q", req.Type)
	}

	if missing := b.missing(req); len(missing) > 0 {
		return nil, apperror.Validation("%s notification is missing %v", req.Type, missing)
	}

	res, err := b.resolve(ctx, r.store, req)
	if err != nil {
		return nil, err
	}

	if b.suppressSelf && res.actorID == res.targetID {
		slog.Debug("Skipping self notification", "type", req.Type, "userID", res.actorID)
		return nil, nil
	}

	actor, err := r.store.FindUserByID(ctx, res.actorID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("user %s not found", res.actorID)
		}
		return nil, fmt.Errorf("find actor: %w", err)
	}

	n := b.compose(actor, req, res)
	n.UserID = res.targetID
	if err := r.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	slog.Info("Notification created", "notificationID", n.ID, "type", n.Type, "userID", n.UserID)
	r.Deliver(n)
	return n, nil
}

// Deliver pushes n to the target's session. An offline target keeps the
// notification persisted but undelivered.
func (r *Router) Deliver(n *models.Notification) bool {
	delivered := r.deliverer.EmitToUser(n.UserID, events.Notification, n)
	if !delivered {
		slog.Debug("Notification target offline", "notificationID", n.ID, "userID", n.UserID)
	}
	r.bg.PublishAsync(r.publisher, events.KindNotificationCreated, n.UserID, n)
	return delivered
}

// WaitBackground blocks until pending stream publishes finish
func (r *Router) WaitBackground() {
	r.bg.Wait()
}
