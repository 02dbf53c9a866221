// Package event defines the domain events produced by room processing
// and consumed by sinks (connections, projections, telemetry).
package event

import (
	"chat-relay/domain"
)

// DomainEvent is anything a Room emits towards its subscribers.
type DomainEvent interface {
	Room() domain.RoomID
}

// SnapshotDelivered carries the full message sequence to one joiner.
// It is targeted at a single sink, never fanned out.
type SnapshotDelivered struct {
	RoomID   domain.RoomID
	Messages []domain.Message
}

func (e SnapshotDelivered) Room() domain.RoomID { return e.RoomID }

// MessageBroadcast is the sanitized message pushed to every participant
// of the Room, sender included. Lang and CensoredWords are moderation
// metadata for projections and logs; they never reach the wire.
type MessageBroadcast struct {
	RoomID        domain.RoomID
	Message       domain.Message
	Lang          string
	CensoredWords []string
}

func (e MessageBroadcast) Room() domain.RoomID { return e.RoomID }

// TypingChanged replaces the aggregate typing presence of the Room.
type TypingChanged struct {
	RoomID domain.RoomID
	State  domain.TypingState
}

func (e TypingChanged) Room() domain.RoomID { return e.RoomID }

// ErrorNotice reports a per-connection failure to the offending client
// only. It is targeted at a single sink, never fanned out.
type ErrorNotice struct {
	RoomID domain.RoomID
	Kind   string
	Detail string
}

func (e ErrorNotice) Room() domain.RoomID { return e.RoomID }
