// Package observability aggregates relay-wide counters and process
// stats for the telemetry log line and the debug inspector.
package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"chat-relay/domain/event"
)

// RelayStats is one consistent snapshot of the relay's health.
type RelayStats struct {
	ConnectionsOpen  int64   `json:"connections_open"`
	ConnectionsTotal uint64  `json:"connections_total"`
	RoomsActive      int64   `json:"rooms_active"`
	MessagesRelayed  uint64  `json:"messages_relayed"`
	TypingUpdates    uint64  `json:"typing_updates"`
	FramesDropped    uint64  `json:"frames_dropped"`
	AllocMemMb       uint64  `json:"alloc_mem_mb"`
	NumGC            uint32  `json:"num_gc"`
	RssBytes         uint64  `json:"rss_bytes"`
	CPUPercent       float64 `json:"cpu_percent"`
}

// MonitoringManager owns the atomic counters mutated from hot paths and
// the slower process stats folded in by the telemetry worker.
type MonitoringManager struct {
	log *slog.Logger

	connectionsOpen  atomic.Int64
	connectionsTotal atomic.Uint64
	roomsActive      atomic.Int64
	messagesRelayed  atomic.Uint64
	typingUpdates    atomic.Uint64
	framesDropped    atomic.Uint64

	mu         sync.RWMutex
	rssBytes   uint64
	cpuPercent float64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log}
}

func (mm *MonitoringManager) ConnectionOpened() {
	mm.connectionsOpen.Add(1)
	mm.connectionsTotal.Add(1)
}

func (mm *MonitoringManager) ConnectionClosed() {
	mm.connectionsOpen.Add(-1)
}

func (mm *MonitoringManager) RoomCreated()   { mm.roomsActive.Add(1) }
func (mm *MonitoringManager) RoomDestroyed() { mm.roomsActive.Add(-1) }

func (mm *MonitoringManager) IncrMessagesRelayed() { mm.messagesRelayed.Add(1) }
func (mm *MonitoringManager) IncrTypingUpdates()   { mm.typingUpdates.Add(1) }
func (mm *MonitoringManager) IncrFramesDropped()   { mm.framesDropped.Add(1) }

// UpdateProcessStats stores the latest RSS/CPU sample from the
// telemetry worker.
func (mm *MonitoringManager) UpdateProcessStats(rss uint64, cpu float64) {
	mm.mu.Lock()
	mm.rssBytes = rss
	mm.cpuPercent = cpu
	mm.mu.Unlock()
}

// Snapshot captures all counters plus Go runtime memory stats.
func (mm *MonitoringManager) Snapshot() RelayStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.mu.RLock()
	rss, cpu := mm.rssBytes, mm.cpuPercent
	mm.mu.RUnlock()

	return RelayStats{
		ConnectionsOpen:  mm.connectionsOpen.Load(),
		ConnectionsTotal: mm.connectionsTotal.Load(),
		RoomsActive:      mm.roomsActive.Load(),
		MessagesRelayed:  mm.messagesRelayed.Load(),
		TypingUpdates:    mm.typingUpdates.Load(),
		FramesDropped:    mm.framesDropped.Load(),
		AllocMemMb:       m.Alloc / 1024 / 1024,
		NumGC:            m.NumGC,
		RssBytes:         rss,
		CPUPercent:       cpu,
	}
}

// EventCounter is a permanent sink fed by the fanout worker; it turns
// the domain event stream into counters.
type EventCounter struct {
	monitoring *MonitoringManager
}

func NewEventCounter(monitoring *MonitoringManager) *EventCounter {
	return &EventCounter{monitoring: monitoring}
}

func (c *EventCounter) Consume(_ context.Context, e event.DomainEvent) error {
	switch e.(type) {
	case event.MessageBroadcast:
		c.monitoring.IncrMessagesRelayed()
	case event.TypingChanged:
		c.monitoring.IncrTypingUpdates()
	}
	return nil
}
