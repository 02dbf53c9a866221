package domain

// TypingState is the aggregate typing presence of a Room.
// It is derived state: recomputed on every typing intent or membership
// change, never persisted, never part of the message history.
//
// Invariant: AnyoneTyping == (len(UsersTyping) > 0).
type TypingState struct {
	AnyoneTyping bool
	UsersTyping  []ClientID
}
