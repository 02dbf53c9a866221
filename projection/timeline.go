// Package projection builds local timelines from observed events.
// Handles ordering and capped retention for the inspector view.
// Does not emit events or interact with the relay directly.
package projection

import (
	"context"
	"sync"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

const defaultRetention = 50

// Timeline keeps the most recent sanitized messages per room. It is a
// permanent sink behind the fanout worker, so it must tolerate
// concurrent reads from the inspector while events keep arriving.
type Timeline struct {
	mu        sync.RWMutex
	retention int
	messages  map[domain.RoomID][]domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{
		retention: defaultRetention,
		messages:  make(map[domain.RoomID][]domain.Message),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessageBroadcast)
	if !ok {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	msgs := append(t.messages[evt.RoomID], evt.Message)
	if len(msgs) > t.retention {
		msgs = msgs[len(msgs)-t.retention:]
	}
	t.messages[evt.RoomID] = msgs
	return nil
}

// Recent returns a copy of the retained messages for one room.
func (t *Timeline) Recent(roomID domain.RoomID) []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	msgs := t.messages[roomID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Forget drops the retained history of a destroyed room.
func (t *Timeline) Forget(roomID domain.RoomID) {
	t.mu.Lock()
	delete(t.messages, roomID)
	t.mu.Unlock()
}
