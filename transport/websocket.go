package transport

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketChannel adapts a *websocket.Conn to the Channel contract.
// Gorilla already frames each WriteMessage/ReadMessage call as one
// complete message, so the 4-byte length prefix of spec §6's wire frame is
// redundant over this transport; only the 1-byte kind tag is prepended to
// each binary message. This mirrors the teacher's own reliance on
// gorilla/websocket (an indirect dependency of the DDA sidecar's own
// transport) for a concrete framed-message transport.
type WebSocketChannel struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// NewWebSocketChannel wraps an already-established connection.
func NewWebSocketChannel(conn *websocket.Conn) *WebSocketChannel {
	return &WebSocketChannel{conn: conn}
}

func (w *WebSocketChannel) Send(kind FrameKind, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	buf := make([]byte, 1+len(payload))
	buf[0] = byte(kind)
	copy(buf[1:], payload)
	if err := w.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		if w.closed {
			return ErrClosed
		}
		return fmt.Errorf("transport: websocket send: %w", err)
	}
	return nil
}

func (w *WebSocketChannel) Recv() (FrameKind, []byte, error) {
	msgType, data, err := w.conn.ReadMessage()
	if err != nil {
		w.mu.Lock()
		closed := w.closed
		w.mu.Unlock()
		if closed || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return 0, nil, ErrClosed
		}
		return 0, nil, fmt.Errorf("transport: websocket recv: %w", err)
	}
	if msgType != websocket.BinaryMessage || len(data) == 0 {
		return 0, nil, fmt.Errorf("transport: websocket recv: unexpected message type %d", msgType)
	}
	return FrameKind(data[0]), data[1:], nil
}

func (w *WebSocketChannel) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	_ = w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = w.conn.Close()
}
