// Package ws is the transport adapter: it terminates WebSocket
// connections and bridges decoded envelopes into the relay core.
package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-relay/domain"
	"chat-relay/observability"
	"chat-relay/services"
)

type Config struct {
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	PingInterval         time.Duration
	ConnectionBufferSize int
	MaxContentLength     int
}

type Server struct {
	svc        services.IChatService
	monitoring *observability.MonitoringManager
	cfg        Config
	log        *slog.Logger
	upgrader   websocket.Upgrader
}

func NewServer(log *slog.Logger, svc services.IChatService,
	monitoring *observability.MonitoringManager, cfg Config) *Server {
	return &Server{
		svc:        svc,
		monitoring: monitoring,
		cfg:        cfg,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Nickname is the only identity; there is no origin-bound
			// auth to protect, so cross-origin clients are accepted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler exposes the single upgrade endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	return mux
}

// handleUpgrade assigns the connection-scoped ClientID and serves the
// connection until it drops. The ClientID is never chosen by the
// client and dies with the connection.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	clientID := domain.ClientID(uuid.NewString())
	s.monitoring.ConnectionOpened()
	s.log.Info("Client connected", "client_id", clientID, "remote", r.RemoteAddr)

	c := newConnection(clientID, conn, s.svc, s.monitoring, s.cfg, s.log)
	c.Serve(r.Context())
}
