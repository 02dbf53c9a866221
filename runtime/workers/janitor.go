package workers

import (
	"context"
	"log/slog"
	"time"
)

// RoomReaper destroys rooms that have been empty for longer than the
// grace period. Implemented by the orchestrator.
type RoomReaper interface {
	ReapEmptyRooms(grace time.Duration) int
}

// JanitorWorker periodically garbage-collects abandoned rooms so an
// ephemeral relay never accumulates dead state. The grace period is a
// policy knob: a room whose last participant dropped may be rejoined
// until the janitor gets to it.
type JanitorWorker struct {
	reaper   RoomReaper
	interval time.Duration
	grace    time.Duration
	log      *slog.Logger
}

func NewJanitorWorker(reaper RoomReaper, interval, grace time.Duration, log *slog.Logger) *JanitorWorker {
	return &JanitorWorker{reaper: reaper, interval: interval, grace: grace, log: log}
}

func (w *JanitorWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping janitor")
			return ctx.Err()
		case <-ticker.C:
			if reaped := w.reaper.ReapEmptyRooms(w.grace); reaped > 0 {
				w.log.Info("Empty rooms destroyed", "count", reaped)
			}
		}
	}
}
