package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"

	"relay-service/internal/events"
	"relay-service/internal/messaging"
	"relay-service/internal/notification"
	"relay-service/internal/presence"
	"relay-service/pkg/apperror"
)

// handlerFunc handles one inbound event for c
type handlerFunc func(ctx context.Context, c *Client, data json.RawMessage) error

type route struct {
	handle handlerFunc
	// surface sends failures back to the originating connection as an error
	// event. Validation failures are never surfaced.
	surface bool
}

// Handlers wires the inbound socket events to the presence, notification and
// messaging components.
type Handlers struct {
	hub           *Hub
	registry      *presence.SessionRegistry
	rooms         *presence.RoomMembership
	broadcaster   *presence.Broadcaster
	notifications *notification.Router
	relay         *messaging.Relay
	publisher     events.Publisher
	bg            *events.Background

	routes map[events.Type]route
}

// HandlersConfig groups the collaborators of Handlers
type HandlersConfig struct {
	Hub           *Hub
	Registry      *presence.SessionRegistry
	Rooms         *presence.RoomMembership
	Broadcaster   *presence.Broadcaster
	Notifications *notification.Router
	Relay         *messaging.Relay
	Publisher     events.Publisher
	Background    *events.Background
}

func NewHandlers(cfg HandlersConfig) *Handlers {
	h := &Handlers{
		hub:           cfg.Hub,
		registry:      cfg.Registry,
		rooms:         cfg.Rooms,
		broadcaster:   cfg.Broadcaster,
		notifications: cfg.Notifications,
		relay:         cfg.Relay,
		publisher:     cfg.Publisher,
		bg:            cfg.Background,
	}
	if h.publisher == nil {
		h.publisher = events.NopPublisher{}
	}
	if h.bg == nil {
		h.bg = &events.Background{}
	}

	h.routes = map[events.Type]route{
		events.Authenticate:              {h.authenticate, true},
		events.JoinRoom:                  {h.joinRoom, false},
		events.LeaveRoom:                 {h.leaveRoom, false},
		events.Typing:                    {h.typing, false},
		events.SendPublicMessage:         {h.sendPublicMessage, true},
		events.SendMessage:               {h.sendMessage, true},
		events.Notification:              {h.notification, false},
		events.CreateFollowNotification:  {h.createFollowNotification, true},
		events.CreateLikeNotification:    {h.createLikeNotification, true},
		events.CreateCommentNotification: {h.createCommentNotification, true},
	}
	return h
}

// HandleEvent dispatches msg. Panics are recovered so one bad frame does not
// take the connection down.
func (h *Handlers) HandleEvent(c *Client, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered from panic in event handler", "connectionID", c.ID(), "event", msg.Type, "panic", r, "stack", string(debug.Stack()))
			c.sendError(apperror.KindInternal.String(), "internal error")
		}
	}()

	rt, ok := h.routes[msg.Type]
	if !ok {
		slog.Warn("Unknown event", "connectionID", c.ID(), "event", msg.Type)
		c.sendError(apperror.KindValidation.String(), "unknown event: "+msg.Type.String())
		return
	}

	err := rt.handle(c.Context(), c, msg.Data)
	if err == nil {
		return
	}

	h.hub.metrics.recordFailure(err)
	kind := apperror.KindOf(err)
	if !rt.surface || kind == apperror.KindValidation {
		slog.Warn("Event dropped", "connectionID", c.ID(), "event", msg.Type, "kind", kind, "error", err)
		return
	}
	slog.Error("Event failed", "connectionID", c.ID(), "event", msg.Type, "kind", kind, "error", err)
	c.SendMessage(errorMessageFor(err))
}

// Disconnected tears the connection down: the session goes, the connection
// leaves every room, and presence is rebroadcast globally and to every room
// that still has members.
func (h *Handlers) Disconnected(c *Client) {
	c.setState(StateTerminated)

	sess, registered := h.registry.Unregister(c.ID())
	affected := h.rooms.RemoveConnectionEverywhere(c.ID())

	h.broadcaster.BroadcastGlobal()
	h.broadcaster.BroadcastRooms(affected)

	if registered {
		h.bg.PublishAsync(h.publisher, events.KindPresenceChanged, sess.UserID, events.PresenceChange{
			UserID:       sess.UserID,
			ConnectionID: c.ID(),
			Online:       false,
			At:           time.Now(),
		})
	}
	slog.Info("Connection terminated", "connectionID", c.ID(), "rooms", len(affected), "registered", registered)
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperror.Validation("missing payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperror.Wrap(apperror.KindValidation, "invalid payload", err)
	}
	return nil
}

func (h *Handlers) authenticate(ctx context.Context, c *Client, data json.RawMessage) error {
	var p events.AuthenticatePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.UserID == "" {
		return apperror.Validation("userId is required")
	}
	if claimed := c.ClaimedUserID(); claimed != "" && claimed != p.UserID {
		return apperror.AuthFailure("userId does not match the connection token")
	}

	sess, err := h.registry.Register(ctx, c.ID(), p.UserID)
	if errors.Is(err, presence.ErrAlreadyPresent) {
		slog.Debug("Authenticate ignored, session already present", "connectionID", c.ID(), "userID", p.UserID)
		return nil
	}
	if err != nil {
		return err
	}

	c.activate()
	h.broadcaster.BroadcastGlobal()
	h.broadcaster.BroadcastAllRooms()

	h.bg.PublishAsync(h.publisher, events.KindPresenceChanged, sess.UserID, events.PresenceChange{
		UserID:       sess.UserID,
		ConnectionID: c.ID(),
		Online:       true,
		At:           sess.ConnectedAt,
	})
	return nil
}

func (h *Handlers) joinRoom(_ context.Context, c *Client, data json.RawMessage) error {
	var p events.RoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.RoomID == "" {
		return apperror.Validation("roomId is required")
	}

	h.rooms.Join(p.RoomID, c.ID())
	slog.Debug("Joined room", "connectionID", c.ID(), "roomID", p.RoomID)
	h.broadcaster.BroadcastRoom(p.RoomID)
	return nil
}

func (h *Handlers) leaveRoom(_ context.Context, c *Client, data json.RawMessage) error {
	var p events.RoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.RoomID == "" {
		return apperror.Validation("roomId is required")
	}

	if h.rooms.Leave(p.RoomID, c.ID()) {
		h.broadcaster.BroadcastRoom(p.RoomID)
	}
	slog.Debug("Left room", "connectionID", c.ID(), "roomID", p.RoomID)
	return nil
}

func (h *Handlers) typing(_ context.Context, c *Client, data json.RawMessage) error {
	var p events.TypingPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.RoomID == "" {
		return apperror.Validation("roomId is required")
	}

	sess := h.registry.FindByUser(p.UserID)
	if sess == nil {
		return nil
	}
	h.broadcaster.EmitToRoom(p.RoomID, events.UserTyping, events.UserTypingPayload{
		UserID:   sess.UserID,
		Username: sess.Username,
		IsTyping: p.IsTyping,
	}, c.ID())
	return nil
}

func (h *Handlers) sendPublicMessage(ctx context.Context, _ *Client, data json.RawMessage) error {
	var p events.PublicMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := h.relay.SendPublic(ctx, p)
	return err
}

func (h *Handlers) sendMessage(ctx context.Context, _ *Client, data json.RawMessage) error {
	var p events.PrivateMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := h.relay.SendPrivate(ctx, p)
	return err
}

func (h *Handlers) notification(ctx context.Context, c *Client, data json.RawMessage) error {
	var p events.NotificationPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := h.notifications.Dispatch(ctx, c.ID(), p)
	return err
}

func (h *Handlers) createFollowNotification(ctx context.Context, c *Client, data json.RawMessage) error {
	var p events.FollowNotificationPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	h.checkActor(c, events.CreateFollowNotification, p.FollowerID)
	_, err := h.notifications.CreateFollowNotification(ctx, p)
	return err
}

func (h *Handlers) createLikeNotification(ctx context.Context, c *Client, data json.RawMessage) error {
	var p events.LikeNotificationPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	h.checkActor(c, events.CreateLikeNotification, p.LikerID)
	_, err := h.notifications.CreateLikeNotification(ctx, p)
	return err
}

func (h *Handlers) createCommentNotification(ctx context.Context, c *Client, data json.RawMessage) error {
	var p events.CommentNotificationPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	h.checkActor(c, events.CreateCommentNotification, p.CommenterID)
	_, err := h.notifications.CreateCommentNotification(ctx, p)
	return err
}

// checkActor warns when the payload actor differs from the session user. The
// payload still wins.
func (h *Handlers) checkActor(c *Client, event events.Type, actorID string) {
	sess := h.registry.FindByConnection(c.ID())
	if sess == nil || sess.UserID == actorID {
		return
	}
	slog.Warn("Payload actor differs from session user", "connectionID", c.ID(), "event", event, "sessionUserID", sess.UserID, "actorID", actorID)
}
