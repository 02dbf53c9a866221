// Package domain contains core concepts of the chat relay.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// ClientID identifies one connection. It is assigned by the relay,
// never chosen by the client, and belongs to at most one Room at a time.
type ClientID string

// Participant is one connected client inside a Room.
// Nickname is a display name and is not guaranteed unique within a Room.
type Participant struct {
	ID       ClientID
	Nickname string
	JoinedAt time.Time
}
