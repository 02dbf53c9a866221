// Package client is the session manager embedded in chat frontends: it
// owns the connection lifecycle, the single in-flight room request and
// the local view of the joined room.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	apperrors "chat-relay/errors"
	"chat-relay/protocol"
)

// ConnectionState is the session lifecycle. Transitions only move
// forward except for Disconnected, which any transport failure falls
// back to.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateReady
	StateInSession
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateInSession:
		return "inSession"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

type roomResult struct {
	roomID   string
	messages []protocol.ChatMessage
	err      error
}

// Session drives one connection to the relay. CreateRoom and JoinRoom
// block until the relay answers with a snapshot or an error envelope;
// only one such request may be in flight at a time. All broadcasts are
// dispatched to the EventHandler from a single goroutine, in wire
// order.
type Session struct {
	mu       sync.Mutex
	state    ConnectionState
	wire     Wire
	pending  chan roomResult
	closing  bool
	messages []protocol.ChatMessage
	typing   protocol.TypingBroadcast

	dial    Dialer
	handler EventHandler
	log     *slog.Logger
}

func NewSession(log *slog.Logger, dial Dialer, handler EventHandler) *Session {
	return &Session{
		state:   StateDisconnected,
		dial:    dial,
		handler: handler,
		log:     log,
	}
}

func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the local room view, in sequence order.
func (s *Session) Messages() []protocol.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Typing returns the last typing presence received for the room.
func (s *Session) Typing() protocol.TypingBroadcast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Connect establishes the transport and starts the read loop. Valid
// only from Disconnected.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", apperrors.ErrInvalidState, state)
	}
	s.state = StateConnecting
	s.mu.Unlock()

	w, err := s.dial(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.wire = w
	s.state = StateReady
	s.mu.Unlock()

	s.handler.OnConnectionReady()
	go s.readLoop(w)
	return nil
}

// CreateRoom asks the relay for a fresh room and blocks until the
// snapshot confirming membership arrives. On success the session is
// InSession and the returned room ID is shareable with other clients.
func (s *Session) CreateRoom(ctx context.Context, nickname string) (string, error) {
	res, err := s.roomRequest(ctx, protocol.Envelope{
		Type: protocol.TypeCreateRoom,
		Data: protocol.CreateRoom{Nickname: nickname},
	})
	if err != nil {
		return "", err
	}
	return res.roomID, nil
}

// JoinRoom enters an existing room and blocks until the snapshot
// arrives. A roomNotFound answer leaves the session Ready so the
// caller can retry with another ID.
func (s *Session) JoinRoom(ctx context.Context, nickname, roomID string) ([]protocol.ChatMessage, error) {
	res, err := s.roomRequest(ctx, protocol.Envelope{
		Type: protocol.TypeJoinRoom,
		Data: protocol.JoinRoom{Nickname: nickname, RoomID: roomID},
	})
	if err != nil {
		return nil, err
	}
	return res.messages, nil
}

func (s *Session) roomRequest(ctx context.Context, env protocol.Envelope) (roomResult, error) {
	s.mu.Lock()
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return roomResult{}, fmt.Errorf("%w: room request while %s", apperrors.ErrInvalidState, state)
	}
	if s.pending != nil {
		s.mu.Unlock()
		return roomResult{}, fmt.Errorf("%w: a room request is already in flight", apperrors.ErrInvalidState)
	}
	pending := make(chan roomResult, 1)
	s.pending = pending
	w := s.wire
	s.mu.Unlock()

	if err := w.WriteEnvelope(env); err != nil {
		s.clearPending(pending)
		return roomResult{}, err
	}

	select {
	case <-ctx.Done():
		s.clearPending(pending)
		return roomResult{}, ctx.Err()
	case res := <-pending:
		if res.err != nil {
			return roomResult{}, res.err
		}
		return res, nil
	}
}

func (s *Session) clearPending(pending chan roomResult) {
	s.mu.Lock()
	if s.pending == pending {
		s.pending = nil
	}
	s.mu.Unlock()
}

// SendMessage posts a message to the joined room. A whitespace-only
// body is a silent no-op. After a real send the typing indicator is
// cleared, mirroring the keystroke that just left the compose box.
func (s *Session) SendMessage(body string) error {
	if strings.TrimSpace(body) == "" {
		return nil
	}

	s.mu.Lock()
	if s.state != StateInSession {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: sendMessage while %s", apperrors.ErrInvalidState, state)
	}
	w := s.wire
	s.mu.Unlock()

	if err := w.WriteEnvelope(protocol.Envelope{
		Type: protocol.TypeSendMessage,
		Data: protocol.SendMessage{Body: body},
	}); err != nil {
		return err
	}
	return w.WriteEnvelope(protocol.Envelope{
		Type: protocol.TypeSetTyping,
		Data: protocol.SetTyping{Typing: false},
	})
}

// SetTyping publishes this client's typing flag to the room.
func (s *Session) SetTyping(typing bool) error {
	s.mu.Lock()
	if s.state != StateInSession {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: setTypingPresence while %s", apperrors.ErrInvalidState, state)
	}
	w := s.wire
	s.mu.Unlock()

	return w.WriteEnvelope(protocol.Envelope{
		Type: protocol.TypeSetTyping,
		Data: protocol.SetTyping{Typing: typing},
	})
}

// Close tears the connection down deliberately. OnClose fires with a
// nil error once the read loop unwinds.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.state = StateClosed
	w := s.wire
	s.mu.Unlock()

	if w != nil {
		return w.Close()
	}
	return nil
}

// readLoop is the session's single dispatch goroutine. Malformed
// frames are skipped; transport errors end the session.
func (s *Session) readLoop(w Wire) {
	for {
		env, err := w.ReadEnvelope()
		if err != nil {
			if errors.Is(err, apperrors.ErrDecode) {
				s.log.Warn("Frame skipped", "error", err)
				continue
			}
			s.shutdown(err)
			return
		}
		s.dispatch(env)
	}
}

func (s *Session) dispatch(env protocol.Envelope) {
	switch data := env.Data.(type) {
	case *protocol.RoomSnapshot:
		s.mu.Lock()
		s.messages = append([]protocol.ChatMessage(nil), data.Messages...)
		s.typing = protocol.TypingBroadcast{UsersTyping: []string{}}
		s.state = StateInSession
		pending := s.pending
		s.pending = nil
		s.mu.Unlock()
		if pending != nil {
			pending <- roomResult{roomID: data.RoomID, messages: data.Messages}
		}
	case *protocol.ChatMessage:
		s.mu.Lock()
		s.messages = append(s.messages, *data)
		s.mu.Unlock()
		s.handler.OnMessage(*data)
	case *protocol.TypingBroadcast:
		s.mu.Lock()
		s.typing = *data
		s.mu.Unlock()
		s.handler.OnTypingChanged(*data)
	case *protocol.Error:
		err := apperrors.FromKind(data.Kind, data.Detail)
		s.mu.Lock()
		pending := s.pending
		s.pending = nil
		s.mu.Unlock()
		if pending != nil {
			// The relay rejected the in-flight create/join; the session
			// stays Ready for another attempt.
			pending <- roomResult{err: err}
			return
		}
		s.log.Warn("Relay reported error", "kind", data.Kind, "detail", data.Detail)
	default:
		s.log.Warn("Unexpected envelope from relay", "type", env.Type)
	}
}

// shutdown resolves the terminal state after the read loop exits.
func (s *Session) shutdown(cause error) {
	s.mu.Lock()
	deliberate := s.closing
	if deliberate {
		s.state = StateClosed
	} else {
		s.state = StateDisconnected
	}
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending != nil {
		pending <- roomResult{err: fmt.Errorf("%w: connection lost", apperrors.ErrTransport)}
	}
	if deliberate {
		s.handler.OnClose(nil)
		return
	}
	s.handler.OnClose(cause)
}
