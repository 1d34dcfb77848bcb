package handlers

import (
	"log/slog"

	"relay-service/internal/api/middleware"
	"relay-service/internal/websocket"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
)

type WSHandler struct {
	hub      *websocket.Hub
	events   websocket.EventHandler
	upgrader *gws.Upgrader
	opts     websocket.ClientOptions
}

func NewWSHandler(hub *websocket.Hub, events websocket.EventHandler, upgrader *gws.Upgrader, opts websocket.ClientOptions) *WSHandler {
	return &WSHandler{
		hub:      hub,
		events:   events,
		upgrader: upgrader,
		opts:     opts,
	}
}

// HandleWebSocket godoc
// @Summary WebSocket connection
// @Description Upgrade to a relay connection. The connection must send an authenticate event before it counts as present. A bearer token, when given, pins the user the connection may authenticate as.
// @Tags websocket
// @Param token query string false "JWT, for clients that cannot set the Authorization header"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} response.ErrorBody "Invalid token"
// @Failure 429 {object} map[string]interface{} "Too many connection attempts"
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	opts := h.opts
	opts.ClaimedUserID = middleware.UserID(c)
	if opts.ClaimedUserID != "" {
		slog.Debug("WebSocket upgrade with token", "userID", opts.ClaimedUserID)
	}
	websocket.ServeWS(h.hub, h.events, h.upgrader, c.Writer, c.Request, opts)
}
