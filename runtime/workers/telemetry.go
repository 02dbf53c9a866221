package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-relay/observability"
)

// TelemetryWorker samples process-level health (RSS, CPU) and folds it
// into the monitoring manager consumed by the inspector page and the
// periodic log line.
type TelemetryWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	interval   time.Duration
}

func NewTelemetryWorker(log *slog.Logger, monitoring *observability.MonitoringManager, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, monitoring: monitoring, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.monitoring.UpdateProcessStats(rss, cpu)

			stats := w.monitoring.Snapshot()
			w.log.Info("Relay telemetry",
				"connections", stats.ConnectionsOpen,
				"rooms", stats.RoomsActive,
				"messages_relayed", stats.MessagesRelayed,
				"typing_updates", stats.TypingUpdates,
				"frames_dropped", stats.FramesDropped,
				"rss_mb", stats.RssBytes/1024/1024,
				"cpu_percent", stats.CPUPercent,
				"alloc_mb", stats.AllocMemMb,
			)
		}
	}
}

// selfStats retrieves memory and CPU usage of the relay process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
