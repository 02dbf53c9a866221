package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"chat-relay/client"
	"chat-relay/protocol"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	RelayURL string `env:"RELAY_URL,default=ws://localhost:8080/ws"`
	Nickname string `env:"CHAT_NICKNAME,default=anonymous"`
	LogLevel string `env:"LOG_LEVEL,default=WARN"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// terminalHandler renders session events on the terminal as they
// arrive, in wire order.
type terminalHandler struct {
	done chan struct{}
}

func (h *terminalHandler) OnConnectionReady() {
	color.Green.Println(">>> Connected. /create or /join <roomID> to start chatting.")
}

func (h *terminalHandler) OnClose(err error) {
	if err != nil {
		color.Red.Printf(">>> Connection lost: %v\n", err)
	} else {
		color.Gray.Println(">>> Connection closed.")
	}
	close(h.done)
}

func (h *terminalHandler) OnMessage(msg protocol.ChatMessage) {
	color.Cyan.Printf("[%s] %s: ", msg.Timestamp.Format(time.TimeOnly), msg.SenderNickname)
	fmt.Println(msg.Body)
}

func (h *terminalHandler) OnTypingChanged(state protocol.TypingBroadcast) {
	if state.AnyoneTyping {
		color.Gray.Printf("... %d user(s) typing\n", len(state.UsersTyping))
	}
}

// run handles the session lifecycle, stdin commands and rendering.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Establish the session with the relay.
	handler := &terminalHandler{done: make(chan struct{})}
	session := client.NewSession(log, client.WebSocketDialer(config.RelayURL), handler)
	if err := session.Connect(ctx); err != nil {
		return exitRuntime, fmt.Errorf("could not connect to relay at %s: %w", config.RelayURL, err)
	}
	defer func() {
		_ = session.Close()
	}()

	// 4. Command loop. Lines starting with / are commands, anything
	// else is sent as a message to the joined room.
	go commandLoop(ctx, session, config.Nickname, stop)

	select {
	case <-ctx.Done():
		color.Gray.Println(">>> Stopping client...")
		return exitOK, nil
	case <-handler.done:
		return exitOK, nil
	}
}

func commandLoop(ctx context.Context, session *client.Session, nickname string, stop func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			stop()
			return
		case line == "/create":
			roomID, err := session.CreateRoom(ctx, nickname)
			if err != nil {
				color.Red.Printf("create failed: %v\n", err)
				continue
			}
			color.Green.Printf(">>> Room created. Share this ID: %s\n", roomID)
		case strings.HasPrefix(line, "/join "):
			roomID := strings.TrimSpace(strings.TrimPrefix(line, "/join "))
			snapshot, err := session.JoinRoom(ctx, nickname, roomID)
			if err != nil {
				color.Red.Printf("join failed: %v\n", err)
				continue
			}
			color.Green.Printf(">>> Joined room %s\n", roomID)
			printSnapshot(snapshot)
		case line == "/typing on":
			if err := session.SetTyping(true); err != nil {
				color.Red.Printf("typing failed: %v\n", err)
			}
		case line == "/typing off":
			if err := session.SetTyping(false); err != nil {
				color.Red.Printf("typing failed: %v\n", err)
			}
		case strings.HasPrefix(line, "/"):
			color.Yellow.Println("commands: /create, /join <roomID>, /typing on|off, /quit")
		default:
			if err := session.SendMessage(line); err != nil {
				color.Red.Printf("send failed: %v\n", err)
			}
		}
	}
}

// printSnapshot renders the room history received on join.
func printSnapshot(messages []protocol.ChatMessage) {
	if len(messages) == 0 {
		color.Gray.Println(">>> No messages yet.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Time", "Sender", "Message"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, msg := range messages {
		table.Append([]string{
			fmt.Sprintf("%d", msg.Sequence),
			msg.Timestamp.Format(time.TimeOnly),
			msg.SenderNickname,
			msg.Body,
		})
	}
	table.Render()
}
