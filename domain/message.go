// Package domain contains core concepts of the chat relay.
// This file defines Message events and related rules.
// Messages are immutable once appended to a Room.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event inside a Room.
// Sequence is assigned by the owning Room at append time and is
// strictly increasing, gap-free within that Room.
type Message struct {
	ID             uuid.UUID
	SenderNickname string
	Body           string
	Sequence       int64
	SentAt         time.Time
}
