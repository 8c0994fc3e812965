// Package server is the thin HTTP surface over the extraction orchestrator
// and the telemetry store.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/ledgerlens/internal/domain"
	"github.com/tjfontaine/ledgerlens/internal/geo"
	"github.com/tjfontaine/ledgerlens/internal/storage"
)

// Processor is the orchestrator capability the handlers consume.
type Processor interface {
	ProcessText(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResult, error)
	ProcessAudio(ctx context.Context, audio []byte, filename, mimeType string, req domain.ExtractionRequest) (*domain.ExtractionResult, error)
	ProcessImage(ctx context.Context, data []byte, mimeType string, req domain.ExtractionRequest) (*domain.ExtractionResult, error)
}

// Locator is the geolocation capability the ping handler consumes.
type Locator interface {
	Lookup(ctx context.Context, ip string) geo.Location
}

// Server wires the chi router.
type Server struct {
	Router *chi.Mux
	Port   int

	processor Processor
	store     storage.Store
	locator   Locator
	logger    *slog.Logger
}

// New creates the server and mounts all routes.
func New(port int, processor Processor, store storage.Store, locator Locator, logger *slog.Logger) *Server {
	s := &Server{
		Port:      port,
		processor: processor,
		store:     store,
		locator:   locator,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "ledgerlens")
	})

	r.Get("/", s.handleHello)
	r.Post("/process-text", s.handleProcessText)
	r.Post("/process-audio", s.handleProcessAudio)
	r.Post("/process-image", s.handleProcessImage)
	r.Get("/llm-usage", s.handleListUsage)
	r.Post("/ping", s.handlePing)

	s.Router = r
	return s
}

// Start runs the HTTP server until the context is cancelled, then shuts it
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Port),
		Handler: s.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.Int("port", s.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
