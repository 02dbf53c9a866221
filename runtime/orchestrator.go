package runtime

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/runtime/workers"
)

//go:embed censored/*
var censoredFolder embed.FS

// roomEntry binds a Room to its serial processor. The commands channel
// is the only way in; closing it (janitor) retires the worker.
type roomEntry struct {
	room      *domain.Room
	commands  chan domain.Command
	gauges    *workers.RoomGauges
	createdAt time.Time
}

// RoomInfo is the inspector's read-only view of one live room.
type RoomInfo struct {
	ID        domain.RoomID
	Members   int64
	CreatedAt time.Time
}

// Orchestrator owns the authoritative room table. Every room gets a
// dedicated worker goroutine, so operations on different rooms proceed
// fully in parallel while each room's mutations stay serialized.
type Orchestrator struct {
	mu              sync.Mutex
	log             *slog.Logger
	rooms           map[domain.RoomID]*roomEntry
	supervisor      contract.ISupervisor
	registry        contract.IRegistry
	monitoring      *observability.MonitoringManager
	timeline        *projection.Timeline
	moderator       *moderation.Moderator
	domainEvents    chan event.DomainEvent
	bufferSize      int
	charReplacement rune
	janitorInterval time.Duration
	gracePeriod     time.Duration

	runCtx context.Context
	cancel context.CancelFunc
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IRegistry, monitoring *observability.MonitoringManager,
	timeline *projection.Timeline, bufferSize int, charReplacement rune,
	janitorInterval, gracePeriod time.Duration) *Orchestrator {
	return &Orchestrator{
		log:             log,
		rooms:           make(map[domain.RoomID]*roomEntry),
		supervisor:      supervisor,
		registry:        registry,
		monitoring:      monitoring,
		timeline:        timeline,
		domainEvents:    make(chan event.DomainEvent, bufferSize),
		bufferSize:      bufferSize,
		charReplacement: charReplacement,
		janitorInterval: janitorInterval,
		gracePeriod:     gracePeriod,
	}
}

// Start prepares moderation and the permanent pipeline, then runs the
// supervisor until the context is canceled or Stop is called. Room
// workers are attached dynamically as rooms get created.
func (o *Orchestrator) Start(ctx context.Context) error {
	moderator, err := o.prepareModeration("censored", o.charReplacement)
	if err != nil {
		return err
	}

	fanout := workers.NewEventFanout(o.log, o.domainEvents,
		o.timeline, observability.NewEventCounter(o.monitoring))
	janitor := workers.NewJanitorWorker(o, o.janitorInterval, o.gracePeriod, o.log)

	o.mu.Lock()
	o.moderator = moderator
	o.runCtx, o.cancel = context.WithCancel(ctx)
	o.supervisor.Add(fanout, janitor)
	runCtx := o.runCtx
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(runCtx)
	return nil
}

// prepareModeration loads censored words and builds the Aho-Corasick automaton.
func (o *Orchestrator) prepareModeration(path string, charReplacement rune) (*moderation.Moderator, error) {
	loader := NewCensoredLoader(censoredFolder)
	data, err := loader.LoadAll(path)
	if err != nil {
		return nil, err
	}

	o.log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	o.log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	moderator, err := moderation.NewModerator(data.Words, charReplacement)
	if err != nil {
		return nil, err
	}
	return &moderator, nil
}

// CreateRoom allocates a fresh room with the caller as first
// participant and spins up its serial worker. The snapshot (empty
// message list) reaches the caller through its sink.
func (o *Orchestrator) CreateRoom(p domain.Participant, sink contract.EventSink) (domain.RoomID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.runCtx == nil {
		return "", fmt.Errorf("orchestrator not started")
	}

	roomID := domain.NewRoomID()
	room := domain.NewRoom(roomID)
	entry := &roomEntry{
		room:      room,
		commands:  make(chan domain.Command, o.bufferSize),
		gauges:    &workers.RoomGauges{},
		createdAt: time.Now().UTC(),
	}
	// A freshly created room counts as empty until the join lands, so
	// a caller that vanishes mid-handshake cannot leak the room.
	entry.gauges.EmptySince.Store(entry.createdAt.UnixNano())

	o.rooms[roomID] = entry
	o.monitoring.RoomCreated()

	worker := workers.NewRoomWorker(room, entry.commands, o.registry,
		o.moderator, o.domainEvents, entry.gauges, o.log)
	o.supervisor.Start(o.runCtx, worker)

	o.enqueue(entry, workers.JoinCommand{RoomID: roomID, Participant: p, Sink: sink})
	o.log.Info("Room created", "room_id", roomID, "client_id", p.ID)
	return roomID, nil
}

// JoinRoom admits a participant into an existing room, or reports
// RoomNotFound without touching any state.
func (o *Orchestrator) JoinRoom(roomID domain.RoomID, p domain.Participant, sink contract.EventSink) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.rooms[roomID]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrRoomNotFound, roomID)
	}
	o.enqueue(entry, workers.JoinCommand{RoomID: roomID, Participant: p, Sink: sink})
	return nil
}

// Dispatch routes a command to the serial processor of its room.
func (o *Orchestrator) Dispatch(cmd domain.Command) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.rooms[cmd.Room()]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrRoomNotFound, cmd.Room())
	}
	o.enqueue(entry, cmd)
	return nil
}

// enqueue is non-blocking: a full room channel sheds load rather than
// stalling every other room behind the orchestrator lock.
func (o *Orchestrator) enqueue(entry *roomEntry, cmd domain.Command) {
	select {
	case entry.commands <- cmd:
	default:
		o.monitoring.IncrFramesDropped()
		o.log.Warn(fmt.Sprintf("Command channel full for Room %s, dropping command", entry.room.ID))
	}
}

// ReapEmptyRooms destroys rooms that have been empty beyond the grace
// period. Closing the command channel lets the worker drain anything
// still buffered and then retire cleanly.
func (o *Orchestrator) ReapEmptyRooms(grace time.Duration) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now().UTC().UnixNano()
	reaped := 0
	for id, entry := range o.rooms {
		emptySince := entry.gauges.EmptySince.Load()
		if emptySince == 0 || now-emptySince < grace.Nanoseconds() {
			continue
		}
		// A buffered join may still be in flight; give it a chance.
		if len(entry.commands) > 0 {
			continue
		}
		close(entry.commands)
		delete(o.rooms, id)
		o.timeline.Forget(id)
		o.monitoring.RoomDestroyed()
		o.log.Info("Room destroyed", "room_id", id)
		reaped++
	}
	return reaped
}

// Rooms lists live rooms for the inspector.
func (o *Orchestrator) Rooms() []RoomInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]RoomInfo, 0, len(o.rooms))
	for id, entry := range o.rooms {
		out = append(out, RoomInfo{
			ID:        id,
			Members:   entry.gauges.Members.Load(),
			CreatedAt: entry.createdAt,
		})
	}
	return out
}

// Stop initiates a graceful shutdown: the supervised context is
// canceled, which unwinds room workers, the fanout and the janitor.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
