package sink

import (
	"context"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

// DefaultWriteTimeout bounds one frame write to a client.
const DefaultWriteTimeout = 5 * time.Second

// WebSocket writes events as JSON frames to one connection. Write errors,
// including a client too slow to take a frame within the write timeout,
// mark the sink closed and later events are dropped.
type WebSocket struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
	closed  bool
}

// WebSocketOption configures a WebSocket sink.
type WebSocketOption func(*WebSocket)

// WithWriteTimeout sets the per-frame write deadline.
func WithWriteTimeout(d time.Duration) WebSocketOption {
	return func(w *WebSocket) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// NewWebSocket wraps a connection.
func NewWebSocket(conn *websocket.Conn, opts ...WebSocketOption) *WebSocket {
	w := &WebSocket{conn: conn, timeout: DefaultWriteTimeout}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WebSocket) Emit(_ context.Context, ev Event) {
	w.Send(ev)
}

// Send writes an arbitrary JSON frame through the same lock.
func (w *WebSocket) Send(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	err := websocket.JSON.Send(w.conn, v)
	w.conn.SetWriteDeadline(time.Time{})
	if err != nil {
		w.closed = true
	}
	return err
}
