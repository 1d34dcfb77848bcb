package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"relay-service/internal/presence"
	"relay-service/internal/websocket"
	"relay-service/pkg/apperror"
	"relay-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// SnapshotSource is satisfied by *presence.Broadcaster
type SnapshotSource interface {
	GlobalSnapshot() []presence.PresenceEntry
}

// SessionFinder is satisfied by *presence.SessionRegistry
type SessionFinder interface {
	FindByUser(userID string) *presence.Session
}

// StatusReader reads the status mirror shared by every relay instance. It is
// satisfied by *services.RedisService.
type StatusReader interface {
	GetOnlineUsers(ctx context.Context) ([]string, error)
	IsUserOnline(ctx context.Context, userID string) (bool, error)
	LastSeen(ctx context.Context, userID string) (time.Time, bool, error)
}

type PresenceHandler struct {
	snapshots SnapshotSource
	sessions  SessionFinder
	metrics   *websocket.ConnectionMetrics
	mirror    StatusReader
}

// NewPresenceHandler builds the read-only presence view. mirror may be nil.
func NewPresenceHandler(snapshots SnapshotSource, sessions SessionFinder, metrics *websocket.ConnectionMetrics, mirror StatusReader) *PresenceHandler {
	return &PresenceHandler{
		snapshots: snapshots,
		sessions:  sessions,
		metrics:   metrics,
		mirror:    mirror,
	}
}

type PresenceResponse struct {
	Count   int                        `json:"count"`
	Users   []presence.PresenceEntry   `json:"users"`
	Metrics *websocket.MetricsSnapshot `json:"metrics,omitempty"`
	// Mirrored is the online set as seen by Redis, which other instances
	// also write to
	Mirrored []string `json:"mirrored,omitempty"`
}

type UserPresenceResponse struct {
	UserID      string `json:"userId"`
	Online      bool   `json:"online"`
	SocketID    string `json:"socketId,omitempty"`
	ConnectedAt string `json:"connectedAt,omitempty"`
	// OnlineElsewhere is set when another instance holds the session
	OnlineElsewhere bool   `json:"onlineElsewhere,omitempty"`
	LastSeen        string `json:"lastSeen,omitempty"`
}

// GetPresence godoc
// @Summary Current presence
// @Description Global presence snapshot of this instance, with connection counters
// @Tags presence
// @Produce json
// @Success 200 {object} PresenceResponse
// @Router /presence [get]
func (h *PresenceHandler) GetPresence(c *gin.Context) {
	users := h.snapshots.GlobalSnapshot()
	resp := PresenceResponse{
		Count: len(users),
		Users: users,
	}
	if h.metrics != nil {
		snap := h.metrics.Snapshot()
		resp.Metrics = &snap
	}
	if h.mirror != nil {
		mirrored, err := h.mirror.GetOnlineUsers(c.Request.Context())
		if err != nil {
			slog.Warn("Failed to read mirrored presence", "error", err)
		} else {
			resp.Mirrored = mirrored
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetUserPresence godoc
// @Summary Presence of one user
// @Tags presence
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} UserPresenceResponse
// @Failure 400 {object} response.ErrorBody
// @Router /presence/{userId} [get]
func (h *PresenceHandler) GetUserPresence(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		response.Error(c, apperror.Validation("userId is required"))
		return
	}

	resp := UserPresenceResponse{UserID: userID}
	if sess := h.sessions.FindByUser(userID); sess != nil {
		resp.Online = true
		resp.SocketID = sess.ConnectionID
		resp.ConnectedAt = sess.ConnectedAt.UTC().Format(time.RFC3339Nano)
		c.JSON(http.StatusOK, resp)
		return
	}

	if h.mirror != nil {
		ctx := c.Request.Context()
		if online, err := h.mirror.IsUserOnline(ctx, userID); err != nil {
			slog.Warn("Failed to read mirrored status", "userID", userID, "error", err)
		} else {
			resp.OnlineElsewhere = online
		}
		if at, ok, err := h.mirror.LastSeen(ctx, userID); err != nil {
			slog.Warn("Failed to read last seen", "userID", userID, "error", err)
		} else if ok {
			resp.LastSeen = at.UTC().Format(time.RFC3339)
		}
	}
	c.JSON(http.StatusOK, resp)
}
