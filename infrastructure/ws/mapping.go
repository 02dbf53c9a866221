package ws

import (
	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/protocol"
)

// toEnvelope translates a domain event into its wire form. Events with
// no wire representation return a zero envelope and are skipped.
func toEnvelope(e event.DomainEvent) (protocol.Envelope, bool) {
	switch evt := e.(type) {
	case event.SnapshotDelivered:
		return protocol.Envelope{
			Type: protocol.TypeRoomSnapshot,
			Data: protocol.RoomSnapshot{
				RoomID:   string(evt.RoomID),
				Messages: toChatMessages(evt.Messages),
			},
		}, true
	case event.MessageBroadcast:
		return protocol.Envelope{
			Type: protocol.TypeMessageBroadcast,
			Data: toChatMessage(evt.Message),
		}, true
	case event.TypingChanged:
		return protocol.Envelope{
			Type: protocol.TypeTypingBroadcast,
			Data: protocol.TypingBroadcast{
				AnyoneTyping: evt.State.AnyoneTyping,
				UsersTyping: lo.Map(evt.State.UsersTyping, func(id domain.ClientID, _ int) string {
					return string(id)
				}),
			},
		}, true
	case event.ErrorNotice:
		return protocol.Envelope{
			Type: protocol.TypeError,
			Data: protocol.Error{Kind: evt.Kind, Detail: evt.Detail},
		}, true
	default:
		return protocol.Envelope{}, false
	}
}

func toChatMessages(messages []domain.Message) []protocol.ChatMessage {
	return lo.Map(messages, func(m domain.Message, _ int) protocol.ChatMessage {
		return toChatMessage(m)
	})
}

func toChatMessage(m domain.Message) protocol.ChatMessage {
	return protocol.ChatMessage{
		SenderNickname: m.SenderNickname,
		Body:           m.Body,
		Sequence:       m.Sequence,
		Timestamp:      m.SentAt,
	}
}
