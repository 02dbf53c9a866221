package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// RoomID is an opaque, globally unique room token.
type RoomID string

// Room owns the ordered message sequence, the participant set and the
// typing set of one chat session. A Room is only ever mutated by its
// dedicated RoomWorker, so none of its methods take locks.
type Room struct {
	ID           RoomID
	messages     []Message
	participants map[ClientID]Participant
	typing       map[ClientID]struct{}
	nextSequence int64
	emptySince   time.Time
}

func NewRoom(id RoomID) *Room {
	return &Room{
		ID:           id,
		participants: make(map[ClientID]Participant),
		typing:       make(map[ClientID]struct{}),
	}
}

// NewRoomID allocates a fresh opaque room token.
func NewRoomID() RoomID {
	return RoomID(uuid.NewString())
}

// Join adds a participant. Joining resets the empty-room clock.
func (r *Room) Join(p Participant) {
	r.participants[p.ID] = p
	r.emptySince = time.Time{}
}

// Leave removes a participant and its typing contribution.
// It reports whether the participant was typing, so the caller knows a
// dropped connection must not leave a stale indicator behind.
func (r *Room) Leave(id ClientID) (wasTyping bool) {
	_, wasTyping = r.typing[id]
	delete(r.typing, id)
	delete(r.participants, id)
	if len(r.participants) == 0 {
		r.emptySince = time.Now().UTC()
	}
	return wasTyping
}

// PostMessage appends a message, assigning the next sequence number.
// The body is expected to be already trimmed and sanitized.
func (r *Room) PostMessage(nickname, body string, at time.Time) Message {
	msg := Message{
		ID:             uuid.New(),
		SenderNickname: nickname,
		Body:           body,
		Sequence:       r.nextSequence,
		SentAt:         at,
	}
	r.nextSequence++
	r.messages = append(r.messages, msg)
	return msg
}

// SetTyping updates one participant's contribution to the typing set.
// Last writer wins per client; unknown clients are ignored.
func (r *Room) SetTyping(id ClientID, typing bool) {
	if _, ok := r.participants[id]; !ok {
		return
	}
	if typing {
		r.typing[id] = struct{}{}
	} else {
		delete(r.typing, id)
	}
}

// TypingState recomputes the aggregate typing presence.
// The user list is sorted so observers see a deterministic order.
func (r *Room) TypingState() TypingState {
	users := make([]ClientID, 0, len(r.typing))
	for id := range r.typing {
		users = append(users, id)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return TypingState{
		AnyoneTyping: len(users) > 0,
		UsersTyping:  users,
	}
}

// Snapshot returns a copy of the full message sequence, in order.
// Clients only ever receive copies; the Room keeps exclusive ownership.
func (r *Room) Snapshot() []Message {
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *Room) Member(id ClientID) (Participant, bool) {
	p, ok := r.participants[id]
	return p, ok
}

func (r *Room) MemberCount() int {
	return len(r.participants)
}

// EmptySince reports when the last participant left, or the zero time
// if the room is occupied or was never joined then abandoned.
func (r *Room) EmptySince() time.Time {
	return r.emptySince
}
