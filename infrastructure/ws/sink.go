package ws

import (
	"context"

	"chat-relay/domain/event"
)

// ConnSink is the buffered hand-off between room workers and one
// connection's write pump. Delivery into a full buffer is dropped
// rather than blocking the room's serial processor: one slow consumer
// must never stall the whole room.
type ConnSink struct {
	Events chan event.DomainEvent
	onDrop func()
}

func NewConnSink(bufferSize int, onDrop func()) *ConnSink {
	return &ConnSink{
		Events: make(chan event.DomainEvent, bufferSize),
		onDrop: onDrop,
	}
}

// Consume is called by the room worker that owns the event's room.
// The write pump takes it from here.
func (s *ConnSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if s.onDrop != nil {
			s.onDrop()
		}
		return nil
	}
}
