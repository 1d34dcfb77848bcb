package websocket

import (
	"sync"
	"sync/atomic"

	"relay-service/pkg/apperror"
)

// ConnectionMetrics counts transport activity for the operator endpoints
type ConnectionMetrics struct {
	opened   atomic.Int64
	closed   atomic.Int64
	received atomic.Int64
	sent     atomic.Int64
	dropped  atomic.Int64

	mu       sync.Mutex
	failures map[apperror.Kind]int64
}

// MetricsSnapshot is a point-in-time copy of ConnectionMetrics
type MetricsSnapshot struct {
	Active   int64                   `json:"active"`
	Opened   int64                   `json:"opened"`
	Closed   int64                   `json:"closed"`
	Received int64                   `json:"received"`
	Sent     int64                   `json:"sent"`
	Dropped  int64                   `json:"dropped"`
	Failures map[apperror.Kind]int64 `json:"failures"`
}

func NewConnectionMetrics() *ConnectionMetrics {
	return &ConnectionMetrics{failures: make(map[apperror.Kind]int64)}
}

func (m *ConnectionMetrics) recordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[apperror.KindOf(err)]++
}

func (m *ConnectionMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	failures := make(map[apperror.Kind]int64, len(m.failures))
	for k, v := range m.failures {
		failures[k] = v
	}
	m.mu.Unlock()

	opened, closed := m.opened.Load(), m.closed.Load()
	return MetricsSnapshot{
		Active:   opened - closed,
		Opened:   opened,
		Closed:   closed,
		Received: m.received.Load(),
		Sent:     m.sent.Load(),
		Dropped:  m.dropped.Load(),
		Failures: failures,
	}
}
