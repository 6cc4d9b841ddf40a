package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// wsFlagJSON marks a framed payload as JSON rather than raw binary.
const wsFlagJSON = 0x01

// WebSocketConfig holds gateway connection settings.
type WebSocketConfig struct {
	// URL is the ws:// or wss:// endpoint of the ingest gateway.
	URL string

	// DialTimeout bounds the connection attempt. Default: 10s.
	DialTimeout time.Duration
}

// WebSocket publishes over a single WebSocket connection to an ingest
// gateway. WebSockets carry no topic routing of their own, so each publish
// is framed as one binary message:
//
//	[1 byte flags][2 bytes topic length, big-endian][topic][payload]
//
// QoS is ignored; delivery is as reliable as the TCP stream. There is no
// automatic reconnect: a dead gateway surfaces as publish errors, which the
// pipeline logs and drops per its contract.
type WebSocket struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

var (
	_ Publisher = (*WebSocket)(nil)
	_ Connected = (*WebSocket)(nil)
)

// NewWebSocket dials the gateway.
func NewWebSocket(ctx context.Context, cfg WebSocketConfig) (*WebSocket, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial websocket %s: %w", cfg.URL, err)
	}
	return &WebSocket{conn: conn}, nil
}

// Publish frames and writes one message. Serialised internally; concurrent
// callers queue on the connection mutex.
func (w *WebSocket) Publish(ctx context.Context, topic string, payload []byte, json bool, _ byte) error {
	if len(topic) > 0xFFFF {
		return fmt.Errorf("transport: topic too long (%d bytes)", len(topic))
	}

	frame := make([]byte, 3+len(topic)+len(payload))
	if json {
		frame[0] = wsFlagJSON
	}
	binary.BigEndian.PutUint16(frame[1:3], uint16(len(topic)))
	copy(frame[3:], topic)
	copy(frame[3+len(topic):], payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("transport: websocket closed")
	}
	if err := w.conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		return fmt.Errorf("transport: websocket publish %s: %w", topic, err)
	}
	return nil
}

// Connected reports whether Close has not yet been called. The underlying
// connection state surfaces through publish errors.
func (w *WebSocket) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed
}

// Close closes the connection. Safe to call more than once.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.conn.Close(websocket.StatusNormalClosure, "shutdown")
}
