package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"relay-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	defaultMaxMessageSize = 64 * 1024
	defaultSendBuffer     = 256
)

// State is the lifecycle stage of a connection
type State int32

const (
	StateConnected State = iota
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// EventHandler consumes the frames of a client. HandleEvent runs on the
// client's read goroutine, so events of one connection are handled in order.
type EventHandler interface {
	HandleEvent(c *Client, msg *Message)
	Disconnected(c *Client)
}

// ClientOptions tunes a connection
type ClientOptions struct {
	SendBuffer     int
	MaxMessageSize int64
	// ClaimedUserID is the user proven at handshake time, empty if none
	ClaimedUserID string
}

type Client struct {
	id            string
	claimedUserID string
	hub           *Hub
	handler       EventHandler
	conn          *websocket.Conn
	maxMessage    int64

	sendMu     sync.Mutex
	send       chan []byte
	sendClosed bool

	state  atomic.Int32
	closed atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(hub *Hub, handler EventHandler, conn *websocket.Conn, opts ClientOptions) *Client {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	ctx, cancel := context.WithCancel(hub.Context())
	return &Client{
		id:            uuid.NewString(),
		claimedUserID: opts.ClaimedUserID,
		hub:           hub,
		handler:       handler,
		conn:          conn,
		maxMessage:    opts.MaxMessageSize,
		send:          make(chan []byte, opts.SendBuffer),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (c *Client) ID() string {
	return c.id
}

// ClaimedUserID is the user id carried by the handshake token, if any
func (c *Client) ClaimedUserID() string {
	return c.claimedUserID
}

func (c *Client) State() State {
	return State(c.state.Load())
}

// Context is cancelled when the connection closes
func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// activate moves Connected to Active. It reports false in any other state.
func (c *Client) activate() bool {
	return c.state.CompareAndSwap(int32(StateConnected), int32(StateActive))
}

func (c *Client) isClosed() bool {
	return c.closed.Load()
}

func (c *Client) close() {
	if c.closed.CompareAndSwap(false, true) {
		c.cancel()
		slog.Debug("Client marked as closed", "connectionID", c.id)
	}
}

// enqueue queues data for the write pump. A full buffer closes the client.
func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed || c.isClosed() {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		slog.Warn("Send buffer full, closing client", "connectionID", c.id)
		c.sendClosed = true
		close(c.send)
		return false
	}
}

func (c *Client) closeSendChannel() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// SendMessage queues msg for this connection only
func (c *Client) SendMessage(msg *Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal message", "connectionID", c.id, "error", err)
		return false
	}
	return c.enqueue(data)
}

func (c *Client) sendError(code, message string) {
	c.SendMessage(NewErrorMessage(code, message))
}

func (c *Client) readPump() {
	defer func() {
		c.close()

		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}

		if err := c.conn.Close(); err != nil {
			slog.Debug("Error closing connection", "connectionID", c.id, "error", err)
		}
	}()

	c.conn.SetReadLimit(c.maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.isClosed() {
			return websocket.ErrCloseSent
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "connectionID", c.id, "error", err)
			} else {
				slog.Debug("WebSocket connection closed", "connectionID", c.id, "error", err)
			}
			return
		}
		c.hub.metrics.received.Add(1)

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Failed to unmarshal message", "connectionID", c.id, "error", err)
			c.sendError(apperror.KindValidation.String(), "Invalid message format")
			continue
		}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}

		c.handler.HandleEvent(c, &msg)

		if c.isClosed() {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		// unblocks readPump so the hub hears about the disconnect
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send channel closed by the hub or by a full buffer
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("Error writing message", "connectionID", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("Error sending ping", "connectionID", c.id, "error", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// ServeWS upgrades the request and hands the connection to the hub
func ServeWS(hub *Hub, handler EventHandler, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, opts ClientOptions) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return
	}

	client := NewClient(hub, handler, conn, opts)
	if err := hub.Register(client); err != nil {
		slog.Error("Failed to register client", "connectionID", client.id, "error", err)
		conn.Close()
		return
	}
	slog.Info("New WebSocket connection established", "connectionID", client.id, "claimedUserID", client.claimedUserID)
}
