package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "chat-relay/errors"
	"chat-relay/protocol"
)

// fakeWire feeds envelopes to the session and records what it writes,
// no socket involved.
type fakeWire struct {
	incoming  chan protocol.Envelope
	writes    chan protocol.Envelope
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeWire() *fakeWire {
	return &fakeWire{
		incoming: make(chan protocol.Envelope, 16),
		writes:   make(chan protocol.Envelope, 16),
		closed:   make(chan struct{}),
	}
}

func (w *fakeWire) ReadEnvelope() (protocol.Envelope, error) {
	select {
	case env := <-w.incoming:
		return env, nil
	case <-w.closed:
		return protocol.Envelope{}, fmt.Errorf("%w: connection closed", apperrors.ErrTransport)
	}
}

func (w *fakeWire) WriteEnvelope(env protocol.Envelope) error {
	w.writes <- env
	return nil
}

func (w *fakeWire) Close() error {
	w.closeOnce.Do(func() { close(w.closed) })
	return nil
}

func (w *fakeWire) dialer() Dialer {
	return func(context.Context) (Wire, error) { return w, nil }
}

// expectWrite waits for the next envelope the session put on the wire.
func (w *fakeWire) expectWrite(t *testing.T) protocol.Envelope {
	t.Helper()
	select {
	case env := <-w.writes:
		return env
	case <-time.After(time.Second):
		t.Fatal("expected a write on the wire")
		return protocol.Envelope{}
	}
}

type recordingHandler struct {
	ready  chan struct{}
	closed chan error
	msgs   chan protocol.ChatMessage
	typing chan protocol.TypingBroadcast
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		ready:  make(chan struct{}, 1),
		closed: make(chan error, 1),
		msgs:   make(chan protocol.ChatMessage, 16),
		typing: make(chan protocol.TypingBroadcast, 16),
	}
}

func (h *recordingHandler) OnConnectionReady() { h.ready <- struct{}{} }

func (h *recordingHandler) OnClose(err error) { h.closed <- err }

func (h *recordingHandler) OnMessage(msg protocol.ChatMessage) { h.msgs <- msg }

func (h *recordingHandler) OnTypingChanged(s protocol.TypingBroadcast) { h.typing <- s }

func newTestSession(t *testing.T) (*Session, *fakeWire, *recordingHandler) {
	t.Helper()
	wire := newFakeWire()
	handler := newRecordingHandler()
	session := NewSession(slog.Default(), wire.dialer(), handler)

	require.Equal(t, StateDisconnected, session.State())
	require.NoError(t, session.Connect(context.Background()))
	require.Equal(t, StateReady, session.State())

	select {
	case <-handler.ready:
	case <-time.After(time.Second):
		t.Fatal("OnConnectionReady never fired")
	}
	return session, wire, handler
}

// joinSession drives a CreateRoom to completion so tests can start from
// an in-session state.
func joinSession(t *testing.T, session *Session, wire *fakeWire) string {
	t.Helper()
	done := make(chan string, 1)
	go func() {
		roomID, err := session.CreateRoom(context.Background(), "Alice")
		require.NoError(t, err)
		done <- roomID
	}()

	env := wire.expectWrite(t)
	require.Equal(t, protocol.TypeCreateRoom, env.Type)

	wire.incoming <- protocol.Envelope{
		Type: protocol.TypeRoomSnapshot,
		Data: &protocol.RoomSnapshot{RoomID: "room-1"},
	}

	select {
	case roomID := <-done:
		require.Equal(t, "room-1", roomID)
		return roomID
	case <-time.After(time.Second):
		t.Fatal("CreateRoom never resolved")
		return ""
	}
}

func TestSession_Connect_OnlyFromDisconnected(t *testing.T) {
	req := require.New(t)
	session, _, _ := newTestSession(t)

	// A second connect on a live session is a caller bug
	err := session.Connect(context.Background())
	req.ErrorIs(err, apperrors.ErrInvalidState)
}

func TestSession_CreateRoom_ResolvesOnSnapshot(t *testing.T) {
	req := require.New(t)
	session, wire, _ := newTestSession(t)

	joinSession(t, session, wire)

	req.Equal(StateInSession, session.State())
	req.Empty(session.Messages())
}

func TestSession_JoinRoom_RoomNotFoundKeepsSessionReady(t *testing.T) {
	req := require.New(t)
	session, wire, _ := newTestSession(t)

	done := make(chan error, 1)
	go func() {
		_, err := session.JoinRoom(context.Background(), "Bob", "stale-room")
		done <- err
	}()

	env := wire.expectWrite(t)
	req.Equal(protocol.TypeJoinRoom, env.Type)

	// When the relay answers with roomNotFound
	wire.incoming <- protocol.Envelope{
		Type: protocol.TypeError,
		Data: &protocol.Error{Kind: apperrors.KindRoomNotFound, Detail: "stale-room"},
	}

	select {
	case err := <-done:
		req.ErrorIs(err, apperrors.ErrRoomNotFound)
	case <-time.After(time.Second):
		req.Fail("JoinRoom never resolved")
	}

	// Then the session survives for another attempt
	req.Equal(StateReady, session.State())
}

func TestSession_JoinRoom_SnapshotSeedsLocalView(t *testing.T) {
	req := require.New(t)
	session, wire, _ := newTestSession(t)

	done := make(chan []protocol.ChatMessage, 1)
	go func() {
		messages, err := session.JoinRoom(context.Background(), "Bob", "room-1")
		require.NoError(t, err)
		done <- messages
	}()

	wire.expectWrite(t)
	wire.incoming <- protocol.Envelope{
		Type: protocol.TypeRoomSnapshot,
		Data: &protocol.RoomSnapshot{
			RoomID: "room-1",
			Messages: []protocol.ChatMessage{
				{SenderNickname: "Alice", Body: "before you arrived", Sequence: 0},
			},
		},
	}

	select {
	case messages := <-done:
		req.Len(messages, 1)
		req.Equal("before you arrived", messages[0].Body)
	case <-time.After(time.Second):
		req.Fail("JoinRoom never resolved")
	}

	req.Equal(StateInSession, session.State())
	req.Len(session.Messages(), 1)
}

func TestSession_SingleRequestInFlight(t *testing.T) {
	req := require.New(t)
	session, wire, _ := newTestSession(t)

	go func() {
		_, _ = session.CreateRoom(context.Background(), "Alice")
	}()
	wire.expectWrite(t)

	// A second room request while the first is pending is rejected
	_, err := session.CreateRoom(context.Background(), "Alice")
	req.ErrorIs(err, apperrors.ErrInvalidState)

	// Unblock the first request
	wire.incoming <- protocol.Envelope{
		Type: protocol.TypeRoomSnapshot,
		Data: &protocol.RoomSnapshot{RoomID: "room-1"},
	}
}

func TestSession_SendMessage_TrimsAndClearsTyping(t *testing.T) {
	req := require.New(t)
	session, wire, _ := newTestSession(t)
	joinSession(t, session, wire)

	// A whitespace-only body never reaches the wire
	req.NoError(session.SendMessage("   \t  "))
	select {
	case env := <-wire.writes:
		req.Failf("unexpected write", "type=%s", env.Type)
	case <-time.After(50 * time.Millisecond):
	}

	// A real body is followed by an automatic typing reset
	req.NoError(session.SendMessage("hello"))

	send := wire.expectWrite(t)
	req.Equal(protocol.TypeSendMessage, send.Type)
	req.Equal(protocol.SendMessage{Body: "hello"}, send.Data)

	reset := wire.expectWrite(t)
	req.Equal(protocol.TypeSetTyping, reset.Type)
	req.Equal(protocol.SetTyping{Typing: false}, reset.Data)
}

func TestSession_SendMessage_RequiresSession(t *testing.T) {
	req := require.New(t)
	session, _, _ := newTestSession(t)

	err := session.SendMessage("too early")
	req.ErrorIs(err, apperrors.ErrInvalidState)

	err = session.SetTyping(true)
	req.ErrorIs(err, apperrors.ErrInvalidState)
}

func TestSession_Broadcasts_ArriveInWireOrder(t *testing.T) {
	req := require.New(t)
	session, wire, handler := newTestSession(t)
	joinSession(t, session, wire)

	wire.incoming <- protocol.Envelope{
		Type: protocol.TypeMessageBroadcast,
		Data: &protocol.ChatMessage{SenderNickname: "Alice", Body: "one", Sequence: 0},
	}
	wire.incoming <- protocol.Envelope{
		Type: protocol.TypeMessageBroadcast,
		Data: &protocol.ChatMessage{SenderNickname: "Bob", Body: "two", Sequence: 1},
	}

	first := <-handler.msgs
	second := <-handler.msgs
	req.Equal("one", first.Body)
	req.Equal("two", second.Body)

	messages := session.Messages()
	req.Len(messages, 2)
	req.Equal(int64(0), messages[0].Sequence)
	req.Equal(int64(1), messages[1].Sequence)
}

func TestSession_TypingBroadcast_ReplacesAggregate(t *testing.T) {
	req := require.New(t)
	session, wire, handler := newTestSession(t)
	joinSession(t, session, wire)

	wire.incoming <- protocol.Envelope{
		Type: protocol.TypeTypingBroadcast,
		Data: &protocol.TypingBroadcast{AnyoneTyping: true, UsersTyping: []string{"bob"}},
	}

	state := <-handler.typing
	req.True(state.AnyoneTyping)
	req.Equal([]string{"bob"}, state.UsersTyping)
	req.True(session.Typing().AnyoneTyping)

	wire.incoming <- protocol.Envelope{
		Type: protocol.TypeTypingBroadcast,
		Data: &protocol.TypingBroadcast{AnyoneTyping: false, UsersTyping: []string{}},
	}

	state = <-handler.typing
	req.False(state.AnyoneTyping)
	req.False(session.Typing().AnyoneTyping)
}

func TestSession_TransportFailure_DisconnectsAndNotifies(t *testing.T) {
	req := require.New(t)
	session, wire, handler := newTestSession(t)
	joinSession(t, session, wire)

	// When the transport dies underneath the session
	_ = wire.Close()

	select {
	case err := <-handler.closed:
		req.ErrorIs(err, apperrors.ErrTransport)
	case <-time.After(time.Second):
		req.Fail("OnClose never fired")
	}
	req.Equal(StateDisconnected, session.State())
}

func TestSession_Close_IsDeliberate(t *testing.T) {
	req := require.New(t)
	session, _, handler := newTestSession(t)

	req.NoError(session.Close())

	select {
	case err := <-handler.closed:
		// A local close is not a failure
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("OnClose never fired")
	}
	req.Equal(StateClosed, session.State())

	// Closing twice is a no-op
	req.NoError(session.Close())
}
