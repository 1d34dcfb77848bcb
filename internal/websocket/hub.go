package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"relay-service/internal/events"
)

var ErrHubStopped = errors.New("hub stopped")

// Hub owns the set of live connections, keyed by connection id. It is the
// Emitter the presence broadcaster fans out through.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	metrics *ConnectionMetrics

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		metrics:    NewConnectionMetrics(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Context is cancelled when the hub stops. Event handlers run under it.
func (h *Hub) Context() context.Context {
	return h.ctx
}

func (h *Hub) Metrics() *ConnectionMetrics {
	return h.metrics
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			slog.Info("WebSocket hub shutting down")
			h.shutdownClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.opened.Add(1)
			slog.Info("Client registered", "connectionID", client.id, "clients", count)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client.id]
			if ok {
				delete(h.clients, client.id)
			}
			count := len(h.clients)
			h.mu.Unlock()
			if !ok {
				continue
			}
			client.closeSendChannel()
			h.metrics.closed.Add(1)
			slog.Info("Client unregistered", "connectionID", client.id, "clients", count)

			client.handler.Disconnected(client)
		}
	}
}

func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-time.After(5 * time.Second):
		return errors.New("timeout registering client")
	}
}

// EmitTo sends an event to one connection. Unknown connections are ignored.
func (h *Hub) EmitTo(connectionID string, event events.Type, payload any) {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	data, err := encode(event, payload)
	if err != nil {
		slog.Error("Failed to encode event", "event", event, "error", err)
		return
	}
	h.deliver(client, data)
}

// EmitAll sends an event to every live connection
func (h *Hub) EmitAll(event events.Type, payload any) {
	data, err := encode(event, payload)
	if err != nil {
		slog.Error("Failed to encode event", "event", event, "error", err)
		return
	}
	for _, client := range h.snapshot() {
		h.deliver(client, data)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes every client and waits, up to timeout, for their pumps to exit
func (h *Hub) Stop(timeout time.Duration) error {
	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		slog.Info("WebSocket hub stopped")
		return nil
	case <-time.After(timeout):
		return errors.New("timeout waiting for clients to close")
	}
}

func (h *Hub) deliver(client *Client, data []byte) {
	if client.enqueue(data) {
		h.metrics.sent.Add(1)
		return
	}
	h.metrics.dropped.Add(1)
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) shutdownClients() {
	clients := h.snapshot()
	for _, client := range clients {
		client.close()
		if err := client.conn.Close(); err != nil {
			slog.Debug("Error closing client connection", "connectionID", client.id, "error", err)
		}
	}
	slog.Info("Closed client connections", "count", len(clients))
}

func encode(event events.Type, payload any) ([]byte, error) {
	msg, err := NewMessage(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}
