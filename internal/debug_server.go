package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"time"

	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/runtime"
)

//go:embed inspect.html
var templatesFS embed.FS

type RoomRow struct {
	ID        string
	Members   int64
	CreatedAt string
	Messages  []MessageRow
}

type MessageRow struct {
	Sequence int64
	Sender   string
	Body     string
	SentAt   string
}

type PageData struct {
	Generated string
	Rooms     []RoomRow
	Stats     observability.RelayStats
}

// StartDebugServer serves the live-room inspector on its own port, away
// from the relay traffic. /inspect renders the dashboard, /stats dumps
// the raw counters as JSON.
func StartDebugServer(port int, orchestrator *runtime.Orchestrator,
	timeline *projection.Timeline, monitoring *observability.MonitoringManager) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		data := PageData{
			Generated: time.Now().Format("15:04:05"),
			Rooms:     collectRooms(orchestrator, timeline),
			Stats:     monitoring.Snapshot(),
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(monitoring.Snapshot())
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

func collectRooms(orchestrator *runtime.Orchestrator, timeline *projection.Timeline) []RoomRow {
	infos := orchestrator.Rooms()
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})

	rows := make([]RoomRow, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, RoomRow{
			ID:        string(info.ID),
			Members:   info.Members,
			CreatedAt: info.CreatedAt.Format("15:04:05"),
			Messages:  toMessageRows(timeline.Recent(info.ID)),
		})
	}
	return rows
}

func toMessageRows(messages []domain.Message) []MessageRow {
	rows := make([]MessageRow, 0, len(messages))
	for _, m := range messages {
		rows = append(rows, MessageRow{
			Sequence: m.Sequence,
			Sender:   m.SenderNickname,
			Body:     m.Body,
			SentAt:   m.SentAt.Format("15:04:05"),
		})
	}
	return rows
}
