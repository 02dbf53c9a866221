package e2e

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"chat-relay/client"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/ws"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/protocol"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
)

// BaseRelaySuite boots a complete in-process relay (orchestrator, room
// workers, WebSocket endpoint) and hands out real client sessions, so
// scenarios exercise the exact wire path production uses.
type BaseRelaySuite struct {
	suite.Suite
	Config Config

	server       *httptest.Server
	orchestrator *runtime.Orchestrator
	cancel       context.CancelFunc
	wsURL        string
}

func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	logger := logs.GetLoggerFromString(s.Config.LogLevel)
	monitoring := observability.NewMonitoringManager(logger)

	s.orchestrator = runtime.NewOrchestrator(
		logger,
		workers.NewSupervisor(logger),
		runtime.NewRegistry(),
		monitoring,
		projection.NewTimeline(),
		64, '*',
		time.Hour, time.Hour, // scenarios manage room lifecycle themselves
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		_ = s.orchestrator.Start(ctx)
	}()

	// Start is asynchronous; wait until the orchestrator routes commands
	// before any scenario dials in.
	s.Require().Eventually(func() bool {
		roomID, err := s.orchestrator.CreateRoom(
			domain.Participant{ID: "warmup", Nickname: "warmup"}, nullSink{})
		if err != nil {
			return false
		}
		_ = s.orchestrator.Dispatch(domain.LeaveCommand{RoomID: roomID, SenderID: "warmup"})
		return true
	}, 5*time.Second, 20*time.Millisecond)

	wsServer := ws.NewServer(logger, services.NewChatService(s.orchestrator), monitoring, ws.Config{
		ReadTimeout:          30 * time.Second,
		WriteTimeout:         5 * time.Second,
		PingInterval:         10 * time.Second,
		ConnectionBufferSize: 64,
		MaxContentLength:     500,
	})
	s.server = httptest.NewServer(wsServer.Handler())
	s.wsURL = "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
}

type nullSink struct{}

func (nullSink) Consume(context.Context, event.DomainEvent) error { return nil }

func (s *BaseRelaySuite) TearDownSuite() {
	s.server.Close()
	s.cancel()
}

// Step prints a colorized scenario step header in the test logs.
func (s *BaseRelaySuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// RelayClient is one connected session plus a serialized feed of every
// event its handler observed, in wire order.
type RelayClient struct {
	Session *client.Session
	Events  chan any
	Closed  chan error
}

func (c *RelayClient) OnConnectionReady() {}

func (c *RelayClient) OnClose(err error) { c.Closed <- err }

func (c *RelayClient) OnMessage(msg protocol.ChatMessage) { c.Events <- msg }

func (c *RelayClient) OnTypingChanged(state protocol.TypingBroadcast) { c.Events <- state }

// NewClient dials the in-process relay and returns a ready session.
func (s *BaseRelaySuite) NewClient() *RelayClient {
	rc := &RelayClient{
		Events: make(chan any, 64),
		Closed: make(chan error, 1),
	}
	rc.Session = client.NewSession(
		logs.GetLoggerFromString(s.Config.LogLevel),
		client.WebSocketDialer(s.wsURL),
		rc,
	)

	ctx, cancel := context.WithTimeout(context.Background(), s.Config.ConnectTimeout)
	defer cancel()
	s.Require().NoError(rc.Session.Connect(ctx))
	return rc
}

// NextMessage blocks until the client observes a message broadcast,
// failing the test if anything else arrives first.
func (s *BaseRelaySuite) NextMessage(c *RelayClient) protocol.ChatMessage {
	evt := s.nextEvent(c)
	msg, ok := evt.(protocol.ChatMessage)
	s.Require().True(ok, "expected a message broadcast, got %T", evt)
	return msg
}

// NextTyping blocks until the client observes a typing broadcast,
// failing the test if anything else arrives first.
func (s *BaseRelaySuite) NextTyping(c *RelayClient) protocol.TypingBroadcast {
	evt := s.nextEvent(c)
	state, ok := evt.(protocol.TypingBroadcast)
	s.Require().True(ok, "expected a typing broadcast, got %T", evt)
	return state
}

func (s *BaseRelaySuite) nextEvent(c *RelayClient) any {
	select {
	case evt := <-c.Events:
		return evt
	case <-time.After(s.Config.EventTimeout):
		s.Require().FailNow("no event observed within timeout")
		return nil
	}
}

// DrainTyping discards typing broadcasts until one matching the wanted
// aggregate arrives. Intermediate aggregates are legal when several
// intents race, the final state is what scenarios assert on.
func (s *BaseRelaySuite) DrainTyping(c *RelayClient, anyoneTyping bool) protocol.TypingBroadcast {
	deadline := time.After(s.Config.EventTimeout)
	for {
		select {
		case evt := <-c.Events:
			state, ok := evt.(protocol.TypingBroadcast)
			s.Require().True(ok, "expected typing broadcasts only, got %T", evt)
			if state.AnyoneTyping == anyoneTyping {
				return state
			}
		case <-deadline:
			s.Require().FailNow("typing aggregate never reached the wanted state")
		}
	}
}
