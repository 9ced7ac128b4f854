// Package web provides the HTTP trigger for load runs.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/silverload/internal/application"
	"github.com/JonMunkholm/silverload/internal/config"
	"github.com/JonMunkholm/silverload/internal/core"
	mw "github.com/JonMunkholm/silverload/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline is the set of operations the trigger exposes.
type Pipeline interface {
	Run(ctx context.Context, sourceID string) (*core.RunReport, error)
	Ingest(ctx context.Context, path string) (*application.IngestReport, error)
	Records(ctx context.Context, limit int) ([]core.MetadataRecord, error)
	Ping(ctx context.Context) error
	Status() core.RunLimiterStatus
}

// Server is the HTTP trigger server.
type Server struct {
	pipeline Pipeline
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server instance.
func NewServer(pipeline Pipeline, cfg *config.Config) *Server {
	s := &Server{
		pipeline: pipeline,
		cfg:      cfg,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     s.router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// Runs answer synchronously, so writes may take up to the run timeout.
		WriteTimeout: cfg.Pipeline.RunTimeout + core.DefaultRunWait + 10*time.Second,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Load runs
		r.Post("/runs", s.handleRun)
		r.Post("/ingest", s.handleIngest)
		r.Get("/status", s.handleStatus)

		// Read-only views
		r.Get("/ledger", s.handleLedger)
		r.Get("/contracts", s.handleContracts)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
