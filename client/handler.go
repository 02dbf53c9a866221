package client

import "chat-relay/protocol"

// EventHandler is the subscription surface consumed by the view layer.
// Exactly one callback fires at a time, always from the session's
// single dispatch goroutine, in the order events arrived on the wire.
type EventHandler interface {
	// OnConnectionReady fires once the transport is established.
	OnConnectionReady()
	// OnClose fires when the connection drops or Close is called.
	// err is nil for a deliberate local close.
	OnClose(err error)
	// OnMessage fires for every broadcast appended to the local view,
	// including the echo of this client's own messages.
	OnMessage(msg protocol.ChatMessage)
	// OnTypingChanged fires when the aggregate typing presence of the
	// room is replaced.
	OnTypingChanged(state protocol.TypingBroadcast)
}
