package workers

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/moderation"
)

// RoomGauges are the only room facts readable from outside the worker:
// the member count and the instant the room became empty (unix nanos,
// zero while occupied). The janitor and the inspector read them.
type RoomGauges struct {
	Members    atomic.Int64
	EmptySince atomic.Int64
}

// JoinCommand admits a participant: membership, sink subscription, and
// snapshot delivery all happen on the room's serial path so a joiner can
// never observe a message both in its snapshot and as a later broadcast.
type JoinCommand struct {
	RoomID      domain.RoomID
	Participant domain.Participant
	Sink        contract.EventSink
}

func (c JoinCommand) Room() domain.RoomID { return c.RoomID }

// RoomWorker is the single writer of one Room. All mutations of the
// message sequence, membership and typing set flow through its command
// channel, which guarantees the strictly increasing, gap-free sequence
// and a total broadcast order for every participant of the room.
type RoomWorker struct {
	room      *domain.Room
	commands  chan domain.Command
	registry  contract.IRegistry
	moderator *moderation.Moderator
	events    chan<- event.DomainEvent
	gauges    *RoomGauges
	log       *slog.Logger
}

func NewRoomWorker(room *domain.Room, commands chan domain.Command,
	registry contract.IRegistry, moderator *moderation.Moderator,
	events chan<- event.DomainEvent, gauges *RoomGauges, log *slog.Logger) *RoomWorker {
	return &RoomWorker{
		room:      room,
		commands:  commands,
		registry:  registry,
		moderator: moderator,
		events:    events,
		gauges:    gauges,
		log:       log.With("room_id", string(room.ID)),
	}
}

func (w *RoomWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping room worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				// Channel closed by the janitor: the room is gone.
				return nil
			}
			w.handle(ctx, cmd)
		}
	}
}

func (w *RoomWorker) handle(ctx context.Context, cmd domain.Command) {
	switch c := cmd.(type) {
	case JoinCommand:
		w.handleJoin(ctx, c)
	case domain.PostMessageCommand:
		w.handlePostMessage(ctx, c)
	case domain.SetTypingCommand:
		w.handleSetTyping(ctx, c)
	case domain.LeaveCommand:
		w.handleLeave(ctx, c)
	default:
		w.log.Warn("Unknown command dropped", "command", cmd)
	}
}

// handleJoin admits the participant, then delivers the snapshot and the
// current typing aggregate to the joiner only. Both are queued on the
// joiner's sink before any later broadcast, so the joiner observes the
// full prior sequence followed by strictly newer messages.
func (w *RoomWorker) handleJoin(ctx context.Context, c JoinCommand) {
	w.room.Join(c.Participant)
	w.gauges.Members.Store(int64(w.room.MemberCount()))
	w.gauges.EmptySince.Store(0)

	w.registry.Subscribe(c.Participant.ID, w.room.ID, c.Sink)

	if err := c.Sink.Consume(ctx, event.SnapshotDelivered{
		RoomID:   w.room.ID,
		Messages: w.room.Snapshot(),
	}); err != nil {
		w.log.Warn("Snapshot delivery failed", "client_id", c.Participant.ID, "error", err)
	}
	_ = c.Sink.Consume(ctx, event.TypingChanged{RoomID: w.room.ID, State: w.room.TypingState()})

	w.log.Info("Participant joined",
		"client_id", c.Participant.ID,
		"nickname", c.Participant.Nickname,
		"members", w.room.MemberCount())
}

// handlePostMessage sanitizes, appends, and fans out to every current
// participant, sender included. The sender relies on the echo rather
// than a local optimistic append, so all participants observe an
// identical total order.
func (w *RoomWorker) handlePostMessage(ctx context.Context, c domain.PostMessageCommand) {
	sender, ok := w.room.Member(c.SenderID)
	if !ok {
		w.log.Warn("Message from non-member dropped", "client_id", c.SenderID)
		return
	}

	body := strings.TrimSpace(c.Body)
	if body == "" {
		w.log.Debug("Empty message dropped", "client_id", c.SenderID)
		return
	}

	sanitized, foundWords := w.moderator.Censor(body)
	lang := moderation.DetectLanguage(body)
	if len(foundWords) > 0 {
		w.log.Warn("Message censored",
			"client_id", c.SenderID,
			"lang", lang,
			"words", len(foundWords))
	}

	msg := w.room.PostMessage(sender.Nickname, sanitized, c.SentAt)
	w.broadcast(ctx, event.MessageBroadcast{
		RoomID:        w.room.ID,
		Message:       msg,
		Lang:          lang,
		CensoredWords: foundWords,
	})
}

// handleSetTyping applies a last-writer-wins typing intent and pushes
// the recomputed aggregate to the whole room.
func (w *RoomWorker) handleSetTyping(ctx context.Context, c domain.SetTypingCommand) {
	if _, ok := w.room.Member(c.SenderID); !ok {
		return
	}
	w.room.SetTyping(c.SenderID, c.Typing)
	w.broadcast(ctx, event.TypingChanged{RoomID: w.room.ID, State: w.room.TypingState()})
}

// handleLeave removes the participant before any subsequent broadcast,
// so a dropped connection can never leave a stale typing indicator.
func (w *RoomWorker) handleLeave(ctx context.Context, c domain.LeaveCommand) {
	if _, ok := w.room.Member(c.SenderID); !ok {
		return
	}
	w.room.Leave(c.SenderID)
	w.registry.Unsubscribe(c.SenderID, w.room.ID)

	w.gauges.Members.Store(int64(w.room.MemberCount()))
	if w.room.MemberCount() == 0 {
		w.gauges.EmptySince.Store(w.room.EmptySince().UnixNano())
		w.log.Info("Room is now empty")
		return
	}

	// Implicit SetTyping{false} on behalf of the leaver.
	w.broadcast(ctx, event.TypingChanged{RoomID: w.room.ID, State: w.room.TypingState()})
	w.log.Info("Participant left", "client_id", c.SenderID, "members", w.room.MemberCount())
}

// broadcast pushes one event to every connection sink of the room, then
// hands a copy to the permanent-sink pipeline (projection, telemetry)
// on a best-effort basis.
func (w *RoomWorker) broadcast(ctx context.Context, evt event.DomainEvent) {
	for _, sink := range w.registry.GetSinksForRoom(w.room.ID) {
		if err := sink.Consume(ctx, evt); err != nil {
			w.log.Warn("Sink delivery failed", "error", err)
		}
	}

	select {
	case w.events <- evt:
	default:
		w.log.Debug("Permanent-sink pipeline full, event dropped")
	}
}
