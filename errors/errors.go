package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode marks a malformed frame. The frame is dropped and the
	// connection stays open.
	ErrDecode = fmt.Errorf("malformed envelope")
	// ErrInvalidState marks an operation called in the wrong local
	// state. This is a caller bug and is never retried automatically.
	ErrInvalidState = fmt.Errorf("invalid session state")
	// ErrRoomNotFound marks a join targeting an absent room.
	ErrRoomNotFound = fmt.Errorf("room not found")
	// ErrTransport marks a dropped connection. The former ClientID and
	// membership are gone; reconnecting starts a fresh session.
	ErrTransport = fmt.Errorf("transport closed")
	// ErrBodyTooLarge marks a message body over the configured limit.
	ErrBodyTooLarge = fmt.Errorf("message body too large")
	// ErrWorkerPanic is reported by the supervisor when a worker
	// recovers from a panic.
	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// Wire error kinds carried by the error envelope.
const (
	KindRoomNotFound = "roomNotFound"
	KindInvalidState = "invalidState"
	KindBadRequest   = "badRequest"
	KindInternal     = "internal"
)

// KindOf maps a domain error to its wire kind.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return KindRoomNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrDecode), errors.Is(err, ErrBodyTooLarge):
		return KindBadRequest
	default:
		return KindInternal
	}
}

// FromKind maps a wire kind back to a sentinel on the client side.
func FromKind(kind, detail string) error {
	switch kind {
	case KindRoomNotFound:
		return fmt.Errorf("%w: %s", ErrRoomNotFound, detail)
	case KindInvalidState:
		return fmt.Errorf("%w: %s", ErrInvalidState, detail)
	default:
		return fmt.Errorf("relay error %s: %s", kind, detail)
	}
}
