package ws

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"chat-relay/domain"
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/protocol"
	"chat-relay/services"
)

// Connection drives one client: a read loop decoding intents and a
// write pump draining the sink. The read loop is the only goroutine
// touching roomID/nickname, so the per-connection session state needs
// no lock.
type Connection struct {
	id         domain.ClientID
	nickname   string
	roomID     domain.RoomID
	conn       *websocket.Conn
	sink       *ConnSink
	svc        services.IChatService
	monitoring *observability.MonitoringManager
	cfg        Config
	log        *slog.Logger
	done       chan struct{}
}

func newConnection(id domain.ClientID, conn *websocket.Conn, svc services.IChatService,
	monitoring *observability.MonitoringManager, cfg Config, log *slog.Logger) *Connection {
	return &Connection{
		id:         id,
		conn:       conn,
		sink:       NewConnSink(cfg.ConnectionBufferSize, monitoring.IncrFramesDropped),
		svc:        svc,
		monitoring: monitoring,
		cfg:        cfg,
		log:        log.With("client_id", string(id)),
		done:       make(chan struct{}),
	}
}

// Serve blocks until the client disconnects or a network error occurs.
// Cleanup always runs: membership is released before the connection
// object goes away, so a drop behaves like an implicit leave.
func (c *Connection) Serve(ctx context.Context) {
	go c.writePump(ctx)
	c.readLoop(ctx)

	close(c.done)
	_ = c.conn.Close()

	if c.roomID != "" {
		if err := c.svc.Leave(c.roomID, c.id); err != nil {
			c.log.Warn("Leave on disconnect failed", "error", err)
		}
	}
	c.monitoring.ConnectionClosed()
	c.log.Info("Client disconnected")
}

func (c *Connection) readLoop(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Error("Read error", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		env, err := protocol.Decode(frame)
		if err != nil {
			// Malformed frame: drop it, keep the connection open.
			c.monitoring.IncrFramesDropped()
			c.log.Warn("Frame dropped", "error", err)
			c.notice(ctx, apperrors.KindBadRequest, err.Error())
			continue
		}
		c.handle(ctx, env)
	}
}

func (c *Connection) handle(ctx context.Context, env protocol.Envelope) {
	switch data := env.Data.(type) {
	case *protocol.CreateRoom:
		c.handleCreateRoom(ctx, data)
	case *protocol.JoinRoom:
		c.handleJoinRoom(ctx, data)
	case *protocol.SendMessage:
		c.handleSendMessage(ctx, data)
	case *protocol.SetTyping:
		c.handleSetTyping(ctx, data)
	default:
		// Relay-to-client tags coming from a client are protocol abuse.
		c.log.Warn("Unexpected envelope from client", "type", env.Type)
		c.notice(ctx, apperrors.KindBadRequest, "unexpected envelope type")
	}
}

func (c *Connection) handleCreateRoom(ctx context.Context, data *protocol.CreateRoom) {
	if c.roomID != "" {
		c.notice(ctx, apperrors.KindInvalidState, "already in a session")
		return
	}
	roomID, err := c.svc.CreateRoom(c.participant(data.Nickname), c.sink)
	if err != nil {
		c.notice(ctx, apperrors.KindOf(err), err.Error())
		return
	}
	c.nickname = data.Nickname
	c.roomID = roomID
}

func (c *Connection) handleJoinRoom(ctx context.Context, data *protocol.JoinRoom) {
	if c.roomID != "" {
		c.notice(ctx, apperrors.KindInvalidState, "already in a session")
		return
	}
	roomID := domain.RoomID(data.RoomID)
	if err := c.svc.JoinRoom(roomID, c.participant(data.Nickname), c.sink); err != nil {
		if errors.Is(err, apperrors.ErrRoomNotFound) {
			c.log.Info("Join rejected, room not found", "room_id", data.RoomID)
		}
		c.notice(ctx, apperrors.KindOf(err), err.Error())
		return
	}
	c.nickname = data.Nickname
	c.roomID = roomID
}

func (c *Connection) handleSendMessage(ctx context.Context, data *protocol.SendMessage) {
	if c.roomID == "" {
		c.notice(ctx, apperrors.KindInvalidState, "not in a session")
		return
	}
	if c.cfg.MaxContentLength > 0 && len(data.Body) > c.cfg.MaxContentLength {
		c.notice(ctx, apperrors.KindBadRequest, apperrors.ErrBodyTooLarge.Error())
		return
	}
	if strings.TrimSpace(data.Body) == "" {
		// Whitespace-only bodies are a documented no-op.
		return
	}
	_ = c.svc.PostMessage(domain.PostMessageCommand{
		RoomID:   c.roomID,
		SenderID: c.id,
		Body:     data.Body,
		SentAt:   time.Now().UTC(),
	})
}

func (c *Connection) handleSetTyping(ctx context.Context, data *protocol.SetTyping) {
	if c.roomID == "" {
		c.notice(ctx, apperrors.KindInvalidState, "not in a session")
		return
	}
	_ = c.svc.SetTyping(domain.SetTypingCommand{
		RoomID:   c.roomID,
		SenderID: c.id,
		Typing:   data.Typing,
	})
}

func (c *Connection) participant(nickname string) domain.Participant {
	return domain.Participant{ID: c.id, Nickname: nickname, JoinedAt: time.Now().UTC()}
}

// notice reports a failure to this connection only; other clients and
// rooms are never affected by one caller's bad input.
func (c *Connection) notice(ctx context.Context, kind, detail string) {
	_ = c.sink.Consume(ctx, event.ErrorNotice{RoomID: c.roomID, Kind: kind, Detail: detail})
}

// writePump owns all writes on the socket: envelopes drained from the
// sink plus keepalive pings. It exits when the connection dies or the
// server shuts down.
func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case evt := <-c.sink.Events:
			env, ok := toEnvelope(evt)
			if !ok {
				continue
			}
			payload, err := protocol.Encode(env)
			if err != nil {
				c.log.Error("Encode failed", "type", env.Type, "error", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Write failed, closing", "error", err)
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}
