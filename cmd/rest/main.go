package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-consult-copilot/internal/bootstrap"
	"ai-consult-copilot/internal/config"
	"ai-consult-copilot/internal/server"
	"ai-consult-copilot/internal/tracer"

	"github.com/fatih/color"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		color.Red("Invalid configuration: %v", err)
		os.Exit(1)
	}

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Telemetry)

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Start Background Services
	if err := container.Start(ctx); err != nil {
		color.Red("Failed to start background services: %v", err)
		os.Exit(1)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()
	color.Green("ai-consult-copilot listening on :%s (env: %s)", cfg.App.Port, cfg.App.Environment)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			color.Red("Server stopped: %v", err)
		}
	case <-ctx.Done():
		color.Yellow("Shutting down, saving staged notes of live consultations...")
	}

	// 6. Graceful Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(); err != nil {
		log.Printf("[WARN] HTTP shutdown: %v", err)
	}
	container.Shutdown(shutdownCtx)
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("[WARN] Tracer shutdown: %v", err)
	}
}
