package runtime_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
)

// RecordingSink collects events across goroutines; room workers push
// from their own goroutine while the test polls.
type RecordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *RecordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *RecordingSink) Snapshot() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.DomainEvent, len(s.events))
	copy(out, s.events)
	return out
}

func startOrchestrator(t *testing.T) *runtime.Orchestrator {
	t.Helper()
	log := slog.Default()
	orchestrator := runtime.NewOrchestrator(
		log,
		workers.NewSupervisor(log),
		runtime.NewRegistry(),
		observability.NewMonitoringManager(log),
		projection.NewTimeline(),
		16, '*',
		time.Hour, time.Hour, // janitor stays quiet, tests reap explicitly
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = orchestrator.Start(ctx)
	}()
	return orchestrator
}

func createRoom(t *testing.T, o *runtime.Orchestrator, p domain.Participant, sink *RecordingSink) domain.RoomID {
	t.Helper()
	var roomID domain.RoomID
	// Start runs asynchronously; retry until the orchestrator is up
	require.Eventually(t, func() bool {
		id, err := o.CreateRoom(p, sink)
		if err != nil {
			return false
		}
		roomID = id
		return true
	}, 2*time.Second, 10*time.Millisecond)
	return roomID
}

func eventsOfLen(sink *RecordingSink, n int) func() bool {
	return func() bool { return len(sink.Snapshot()) >= n }
}

func TestOrchestrator_CreateRoom_DeliversEmptySnapshotToCreator(t *testing.T) {
	req := require.New(t)
	orchestrator := startOrchestrator(t)

	sink := &RecordingSink{}
	roomID := createRoom(t, orchestrator, domain.Participant{ID: "alice", Nickname: "Alice"}, sink)
	req.NotEmpty(roomID)

	// Then the creator receives its snapshot and the typing baseline
	require.Eventually(t, eventsOfLen(sink, 2), 2*time.Second, 10*time.Millisecond)

	events := sink.Snapshot()
	snapshot, ok := events[0].(event.SnapshotDelivered)
	req.True(ok)
	req.Equal(roomID, snapshot.RoomID)
	req.Empty(snapshot.Messages)

	typing, ok := events[1].(event.TypingChanged)
	req.True(ok)
	req.False(typing.State.AnyoneTyping)
}

func TestOrchestrator_JoinRoom_UnknownRoomIsRejected(t *testing.T) {
	req := require.New(t)
	orchestrator := startOrchestrator(t)

	// Warm up so the orchestrator is started
	creator := &RecordingSink{}
	createRoom(t, orchestrator, domain.Participant{ID: "alice", Nickname: "Alice"}, creator)

	err := orchestrator.JoinRoom("no-such-room",
		domain.Participant{ID: "bob", Nickname: "Bob"}, &RecordingSink{})
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
}

func TestOrchestrator_MessageFlow_BroadcastsToAllParticipants(t *testing.T) {
	req := require.New(t)
	orchestrator := startOrchestrator(t)

	aliceSink := &RecordingSink{}
	roomID := createRoom(t, orchestrator, domain.Participant{ID: "alice", Nickname: "Alice"}, aliceSink)

	bobSink := &RecordingSink{}
	req.NoError(orchestrator.JoinRoom(roomID,
		domain.Participant{ID: "bob", Nickname: "Bob"}, bobSink))
	require.Eventually(t, eventsOfLen(bobSink, 2), 2*time.Second, 10*time.Millisecond)

	// When alice posts after bob joined
	req.NoError(orchestrator.Dispatch(domain.PostMessageCommand{
		RoomID:   roomID,
		SenderID: "alice",
		Body:     "hello bob",
		SentAt:   time.Now().UTC(),
	}))

	// Then both participants receive the same broadcast, sender included
	require.Eventually(t, func() bool {
		return lastBroadcast(aliceSink) != nil && lastBroadcast(bobSink) != nil
	}, 2*time.Second, 10*time.Millisecond)

	fromAlice := lastBroadcast(aliceSink)
	fromBob := lastBroadcast(bobSink)
	req.Equal("hello bob", fromAlice.Message.Body)
	req.Equal(int64(0), fromAlice.Message.Sequence)
	req.Equal(fromAlice.Message.ID, fromBob.Message.ID)
}

func lastBroadcast(sink *RecordingSink) *event.MessageBroadcast {
	for _, e := range sink.Snapshot() {
		if b, ok := e.(event.MessageBroadcast); ok {
			return &b
		}
	}
	return nil
}

func TestOrchestrator_ReapEmptyRooms_DestroysAbandonedRoom(t *testing.T) {
	req := require.New(t)
	orchestrator := startOrchestrator(t)

	sink := &RecordingSink{}
	roomID := createRoom(t, orchestrator, domain.Participant{ID: "alice", Nickname: "Alice"}, sink)
	require.Eventually(t, eventsOfLen(sink, 2), 2*time.Second, 10*time.Millisecond)

	// When the only participant leaves
	req.NoError(orchestrator.Dispatch(domain.LeaveCommand{RoomID: roomID, SenderID: "alice"}))

	// Then the room becomes reapable once the leave is processed
	require.Eventually(t, func() bool {
		return orchestrator.ReapEmptyRooms(0) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// And the room token no longer routes
	err := orchestrator.Dispatch(domain.SetTypingCommand{RoomID: roomID, SenderID: "alice", Typing: true})
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
}

func TestOrchestrator_ReapEmptyRooms_SparesOccupiedRooms(t *testing.T) {
	req := require.New(t)
	orchestrator := startOrchestrator(t)

	sink := &RecordingSink{}
	roomID := createRoom(t, orchestrator, domain.Participant{ID: "alice", Nickname: "Alice"}, sink)
	require.Eventually(t, eventsOfLen(sink, 2), 2*time.Second, 10*time.Millisecond)

	// An occupied room is never reaped, whatever the grace period
	req.Zero(orchestrator.ReapEmptyRooms(0))

	req.NoError(orchestrator.Dispatch(domain.SetTypingCommand{RoomID: roomID, SenderID: "alice", Typing: true}))
	req.Zero(orchestrator.ReapEmptyRooms(0))
}
