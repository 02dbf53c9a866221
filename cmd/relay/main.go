package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/projection"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanup always executes.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Relay core: registry, supervision, projections, orchestration
	registry := runtime.NewRegistry()
	sup := workers.NewSupervisor(logger)
	monitoring := observability.NewMonitoringManager(logger)
	timeline := projection.NewTimeline()

	orchestrator := runtime.NewOrchestrator(
		logger, sup, registry, monitoring, timeline,
		config.BufferSize, charReplacement,
		config.JanitorInterval, config.RoomGracePeriod,
	)
	sup.Add(workers.NewTelemetryWorker(logger, monitoring, config.TelemetryInterval))

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Error (HTTP server & Orchestrator)
	errChan := make(chan error, 2)

	// 4. Start the Engine (Room workers, Fanout, Janitor, Telemetry)
	go func() {
		logger.Info("Starting orchestrator...")
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 5. WebSocket endpoint
	wsServer := ws.NewServer(logger, services.NewChatService(orchestrator), monitoring, ws.Config{
		ReadTimeout:          config.ReadTimeout,
		WriteTimeout:         config.WriteTimeout,
		PingInterval:         config.PingInterval,
		ConnectionBufferSize: config.ConnectionBufferSize,
		MaxContentLength:     config.MaxContentLength,
	})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: wsServer.Handler()}

	go func() {
		logger.Info("Starting WebSocket server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	internal.StartDebugServer(config.DebugPort, orchestrator, timeline, monitoring)
	logger.Info("Debug inspector available",
		"url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))

	// 6. Wait for Stop or Error
	// The execution blocks here until either a signal is received or a server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 7. Final Cleanup (Graceful Shutdown)
	// Stop accepting connections first, then unwind the workers.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}
