package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	apperrors "chat-relay/errors"
)

// validate checks required payload fields after unmarshalling, so a
// frame with a recognized tag but a hollow payload is rejected too.
var validate = validator.New()

type rawEnvelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode serializes an envelope. It cannot fail for the payload types
// declared in this package; an error here means a programming bug
// (e.g. an unserializable payload smuggled into Data).
func Encode(env Envelope) ([]byte, error) {
	raw := struct {
		Type Type `json:"type"`
		Data any  `json:"data"`
	}{Type: env.Type, Data: env.Data}

	out, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", env.Type, err)
	}
	return out, nil
}

// Decode parses one frame into a typed envelope. Any failure wraps
// errors.ErrDecode: the caller's policy is to drop the frame and keep
// the connection open, never to desynchronize framing.
func Decode(frame []byte) (Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(frame, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", apperrors.ErrDecode, err)
	}

	payload, err := payloadFor(raw.Type)
	if err != nil {
		return Envelope{}, err
	}

	if len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, payload); err != nil {
			return Envelope{}, fmt.Errorf("%w: bad %s payload: %v", apperrors.ErrDecode, raw.Type, err)
		}
	}

	if err := validate.Struct(payload); err != nil {
		return Envelope{}, fmt.Errorf("%w: incomplete %s payload: %v", apperrors.ErrDecode, raw.Type, err)
	}

	return Envelope{Type: raw.Type, Data: payload}, nil
}

// payloadFor allocates the concrete payload struct for a tag.
func payloadFor(t Type) (any, error) {
	switch t {
	case TypeCreateRoom:
		return &CreateRoom{}, nil
	case TypeJoinRoom:
		return &JoinRoom{}, nil
	case TypeSendMessage:
		return &SendMessage{}, nil
	case TypeSetTyping:
		return &SetTyping{}, nil
	case TypeRoomSnapshot:
		return &RoomSnapshot{}, nil
	case TypeMessageBroadcast:
		return &ChatMessage{}, nil
	case TypeTypingBroadcast:
		return &TypingBroadcast{}, nil
	case TypeError:
		return &Error{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown envelope type %q", apperrors.ErrDecode, t)
	}
}
