package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	apperrors "chat-relay/errors"
	"chat-relay/protocol"
)

// Wire is the minimal transport surface the session manager needs:
// typed envelopes in, typed envelopes out. The production
// implementation sits on a WebSocket; tests substitute an in-memory
// fake.
type Wire interface {
	ReadEnvelope() (protocol.Envelope, error)
	WriteEnvelope(env protocol.Envelope) error
	Close() error
}

// Dialer opens a Wire. Injected so the session manager stays ignorant
// of URLs and handshakes.
type Dialer func(ctx context.Context) (Wire, error)

// WebSocketDialer returns a Dialer for the relay's upgrade endpoint,
// e.g. ws://localhost:8080/ws.
func WebSocketDialer(url string) Dialer {
	return func(ctx context.Context) (Wire, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: dial %s: %v", apperrors.ErrTransport, url, err)
		}
		return &wsWire{conn: conn}, nil
	}
}

// wsWire adapts a gorilla connection. Writes are serialized because
// SendMessage emits two envelopes back to back and user calls may race
// the typing debounce.
type wsWire struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (w *wsWire) ReadEnvelope() (protocol.Envelope, error) {
	_, frame, err := w.conn.ReadMessage()
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("%w: %v", apperrors.ErrTransport, err)
	}
	return protocol.Decode(frame)
}

func (w *wsWire) WriteEnvelope(env protocol.Envelope) error {
	payload, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransport, err)
	}
	return nil
}

func (w *wsWire) Close() error {
	return w.conn.Close()
}
