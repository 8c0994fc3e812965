package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/ledgerlens/internal/config"
	"github.com/tjfontaine/ledgerlens/internal/geo"
	"github.com/tjfontaine/ledgerlens/internal/registration"
	"github.com/tjfontaine/ledgerlens/internal/server"
	"github.com/tjfontaine/ledgerlens/internal/storage"
	"github.com/tjfontaine/ledgerlens/internal/storage/memory"
	"github.com/tjfontaine/ledgerlens/internal/storage/sqlite"
	"github.com/tjfontaine/ledgerlens/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("ledgerlens", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	store, err := openStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	orch, err := registration.BuildOrchestrator(cfg, store, logger)
	if err != nil {
		log.Fatalf("Failed to build orchestrator: %v", err)
	}

	locator := geo.New(cfg.Geolocation.APIKey, logger)
	srv := server.New(cfg.Server.Port, orch, store, locator, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	logger.Info("shutdown complete")
}

func openStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	default:
		return sqlite.New(cfg.SQLite.Path)
	}
}
