package domain

import "time"

// Command is a mutation intent routed to the serial processor of the
// Room it targets.
type Command interface {
	Room() RoomID
}

// PostMessageCommand appends a chat message on behalf of a participant.
type PostMessageCommand struct {
	RoomID   RoomID
	SenderID ClientID
	Body     string
	SentAt   time.Time
}

func (c PostMessageCommand) Room() RoomID { return c.RoomID }

// SetTypingCommand updates one participant's typing presence.
type SetTypingCommand struct {
	RoomID   RoomID
	SenderID ClientID
	Typing   bool
}

func (c SetTypingCommand) Room() RoomID { return c.RoomID }

// LeaveCommand removes a participant, either on explicit leave or on
// connection drop. Typing presence is recomputed as an implicit
// SetTyping{false}.
type LeaveCommand struct {
	RoomID   RoomID
	SenderID ClientID
}

func (c LeaveCommand) Room() RoomID { return c.RoomID }
