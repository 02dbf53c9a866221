// Package protocol defines the tagged JSON envelopes exchanged between
// session managers and the relay, and the codec that (de)serializes
// them. The wire format is a text frame {"type": ..., "data": ...}.
package protocol

import "time"

// Type tags an envelope.
type Type string

const (
	// Client to relay.
	TypeCreateRoom  Type = "createRoom"
	TypeJoinRoom    Type = "joinRoom"
	TypeSendMessage Type = "sendMessage"
	TypeSetTyping   Type = "setTypingPresence"

	// Relay to client.
	TypeRoomSnapshot     Type = "roomSnapshot"
	TypeMessageBroadcast Type = "messageBroadcast"
	TypeTypingBroadcast  Type = "typingBroadcast"
	TypeError            Type = "error"
)

// Envelope is one typed unit of protocol communication.
// Data holds the payload struct matching Type.
type Envelope struct {
	Type Type
	Data any
}

// CreateRoom asks the relay for a fresh room with the caller as its
// first participant.
type CreateRoom struct {
	Nickname string `json:"nickname" validate:"required"`
}

// JoinRoom asks the relay to admit the caller into an existing room.
type JoinRoom struct {
	Nickname string `json:"nickname" validate:"required"`
	RoomID   string `json:"roomId" validate:"required"`
}

// SendMessage carries one chat message body.
type SendMessage struct {
	Body string `json:"body" validate:"required"`
}

// SetTyping carries one typing-presence intent. False is a valid value,
// so the field is deliberately not required.
type SetTyping struct {
	Typing bool `json:"typing"`
}

// ChatMessage is the wire form of a message, used both inside
// snapshots and as the messageBroadcast payload.
type ChatMessage struct {
	SenderNickname string    `json:"senderNickname"`
	Body           string    `json:"body"`
	Sequence       int64     `json:"sequence"`
	Timestamp      time.Time `json:"timestamp"`
}

// RoomSnapshot delivers the full current message sequence on a
// successful create or join.
type RoomSnapshot struct {
	RoomID   string        `json:"roomId" validate:"required"`
	Messages []ChatMessage `json:"messages"`
}

// TypingBroadcast replaces the aggregate typing presence of the room.
type TypingBroadcast struct {
	AnyoneTyping bool     `json:"anyoneTyping"`
	UsersTyping  []string `json:"usersTyping"`
}

// Error reports a per-connection failure.
type Error struct {
	Kind   string `json:"kind" validate:"required"`
	Detail string `json:"detail"`
}
