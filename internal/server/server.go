// Package server exposes the workbench stages as a JSON HTTP API.
//
// Stage actions are serialized: the session store allows one writer at a
// time, so every mutating request holds the server lock while its stage
// runs. Read-only endpoints (status, history, columns) do not take it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/harmonize-tools/s4h-workbench/internal/config"
	"github.com/harmonize-tools/s4h-workbench/internal/engine"
	"github.com/harmonize-tools/s4h-workbench/internal/telemetry"
)

// Config holds configuration for the API server.
type Config struct {
	Engine  *engine.Engine
	Metrics *telemetry.Metrics
	// Settings supply the parameters a request leaves unset.
	Settings config.Settings
	Addr     string
	Logger   *slog.Logger
}

// Server is the API server.
type Server struct {
	engine   *engine.Engine
	metrics  *telemetry.Metrics
	settings config.Settings
	addr     string
	logger   *slog.Logger
	notifier *Notifier

	// mu serializes stage actions.
	mu sync.Mutex
}

// New creates a new API server instance.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = cfg.Settings.Server.Addr
	}
	return &Server{
		engine:   cfg.Engine,
		metrics:  cfg.Metrics,
		settings: cfg.Settings,
		addr:     addr,
		logger:   logger,
		notifier: NewNotifier(),
	}
}

// Notifier returns the server's outcome notifier.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		s.logRequests,
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
		r.Get("/columns", s.handleColumns)
		r.Get("/samples", s.handleSamples)
		r.Get("/events", s.handleEvents)

		r.Post("/dictionary", s.handleDictionary)
		r.Post("/layout", s.handleLayout)
		r.Delete("/layout", s.handleDisableLayout)
		r.Post("/extract", s.handleExtract)
		r.Post("/prune", s.handlePrune)
		r.Post("/merge", s.handleMerge)
		r.Post("/translate", s.handleTranslate)
		r.Post("/classify", s.handleClassify)
		r.Post("/select", s.handleSelect)
		r.Post("/explore", s.handleExplore)
		r.Post("/explore/adopt", s.handleAdopt)
		r.Post("/export", s.handleExport)
		r.Post("/reset", s.handleReset)
	})
	r.Handle("/metrics", s.metrics.Handler())

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", slog.String("addr", "http://"+ln.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// logRequests logs each request through the structured logger.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
