package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

type Sink struct {
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Subscribe_One_Room_One_Participant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID := domain.ClientID(uuid.NewString())
	roomID := domain.NewRoomID()
	sink := Sink{}

	// Given no user is connected
	// And no room exists
	req.Empty(registry.sessions)
	req.Empty(registry.roomMembers)

	// When a participant subscribes a room
	registry.Subscribe(participantID, roomID, sink)

	// Then
	req.Len(registry.sessions, 1)
	req.Equal(sink, registry.sessions[participantID])

	req.Len(registry.roomMembers, 1)
	req.Contains(registry.roomMembers[roomID], participantID)

	req.Len(registry.GetSinksForRoom(roomID), 1)
	req.Contains(registry.GetSinksForRoom(roomID), sink)
}

func TestRegistry_Subscribe_One_Room_Multiple_Participants(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID1 := domain.ClientID(uuid.NewString())
	participantID2 := domain.ClientID(uuid.NewString())
	roomID := domain.NewRoomID()
	sink1 := Sink{}
	sink2 := Sink{}

	// When participants subscribe a room
	registry.Subscribe(participantID1, roomID, sink1)
	registry.Subscribe(participantID2, roomID, sink2)

	// Then
	req.Len(registry.sessions, 2)
	req.Len(registry.roomMembers[roomID], 2)

	req.Len(registry.GetSinksForRoom(roomID), 2)
	req.Contains(registry.GetSinksForRoom(roomID), sink1)
}

func TestRegistry_UnSubscribe_One_Room_One_Participant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID := domain.ClientID(uuid.NewString())
	roomID := domain.NewRoomID()
	sink := Sink{}

	// Given a participant subscribes a room
	registry.Subscribe(participantID, roomID, sink)

	// When a participant unsubscribe a room
	registry.Unsubscribe(participantID, roomID)

	// Then no participant left
	// And the room doesn't exist anymore
	req.Empty(registry.sessions)
	req.Empty(registry.roomMembers)

	// And no participant connected left in room
	req.Nil(registry.GetSinksForRoom(roomID))
}

func TestRegistry_UnSubscribe_One_Room_Multiple_Participant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID1 := domain.ClientID(uuid.NewString())
	participantID2 := domain.ClientID(uuid.NewString())
	roomID := domain.NewRoomID()
	sink1 := Sink{}
	sink2 := Sink{}

	// When participants subscribe a room
	registry.Subscribe(participantID1, roomID, sink1)
	registry.Subscribe(participantID2, roomID, sink2)

	// When a participant unsubscribe a room
	registry.Unsubscribe(participantID1, roomID)

	// Then only one participant left
	req.Len(registry.sessions, 1)
	req.Len(registry.roomMembers[roomID], 1)

	req.Len(registry.GetSinksForRoom(roomID), 1)
	req.Contains(registry.GetSinksForRoom(roomID), sink2)
}

func TestRegistry_GetSink_ResolvesSingleParticipant(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	participantID := domain.ClientID(uuid.NewString())
	roomID := domain.NewRoomID()
	sink := Sink{}

	// Given an unknown participant
	_, ok := registry.GetSink(participantID)
	req.False(ok)

	// When the participant subscribes
	registry.Subscribe(participantID, roomID, sink)

	// Then its sink resolves directly
	got, ok := registry.GetSink(participantID)
	req.True(ok)
	req.Equal(sink, got)
}
