// Package web provides the HTTP operator surface for the catalog importer:
// triggering runs, streaming run progress, and querying run history.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Makondoo-Inc/odoo-deployments/internal/config"
	"github.com/Makondoo-Inc/odoo-deployments/internal/database"
	"github.com/Makondoo-Inc/odoo-deployments/internal/importer"
	mw "github.com/Makondoo-Inc/odoo-deployments/internal/web/middleware"
)

// ImportService is the importer capability the handlers consume.
// Implemented by *importer.Service.
type ImportService interface {
	StartImport(ctx context.Context, path string) (string, error)
	SubscribeProgress(runID string) (<-chan importer.Progress, error)
	GetProgress(runID string) (importer.Progress, error)
	GetResult(runID string) (*importer.Result, error)
	CancelRun(runID string) error
}

// HistoryStore lists persisted run history. Implemented by
// *database.Repository; may be nil when history is not persisted.
type HistoryStore interface {
	RunHistory(ctx context.Context, limit int) ([]database.RunRecord, error)
}

// Server is the HTTP server for the import operator API.
type Server struct {
	service ImportService
	history HistoryStore
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service ImportService, history HistoryStore, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		history: history,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Import runs
		r.Post("/imports", s.handleStartImport)
		r.Get("/imports/{runID}", s.handleRunStatus)
		r.Get("/imports/{runID}/progress", s.handleRunProgress)
		r.Get("/imports/{runID}/result", s.handleRunResult)
		r.Post("/imports/{runID}/cancel", s.handleCancelRun)

		// Catalog discovery
		r.Get("/catalogs", s.handleListCatalogs)

		// Run history
		r.Get("/history", s.handleRunHistory)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 for SSE
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
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
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// writeError writes a JSON error response. Logs the full error server-side.
func writeError(w http.ResponseWriter, status int, message string) {
	slog.Error("request error", "status", status, "error", message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}
