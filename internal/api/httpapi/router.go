// Package httpapi exposes the Memory Engine over a localhost-bound HTTP
// surface: health/status, CRUD over memories, hybrid search, consolidation,
// and contradiction resolution, all behind a consistent error envelope.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"engram/internal/consolidate"
	"engram/internal/domain"
	"engram/internal/ingest"
	"engram/internal/recall"
)

// Server wires Ingest/Recall/Consolidator to a chi router.
type Server struct {
	store          domain.Store
	embedder       domain.Embedder
	ingest         *ingest.Ingest
	recall         *recall.Recall
	consolidator   *consolidate.Consolidator
	logger         *slog.Logger
	startedAt      time.Time
	configSnapshot map[string]any
}

// ServerOption configures optional Server fields.
type ServerOption func(*Server)

// WithConfigSnapshot attaches a non-secret config summary surfaced verbatim
// under GET /api/status's "config" key.
func WithConfigSnapshot(snapshot map[string]any) ServerOption {
	return func(s *Server) { s.configSnapshot = snapshot }
}

// NewServer creates an httpapi Server over the given components.
func NewServer(store domain.Store, embedder domain.Embedder, ing *ingest.Ingest, rec *recall.Recall, con *consolidate.Consolidator, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		store:        store,
		embedder:     embedder,
		ingest:       ing,
		recall:       rec,
		consolidator: con,
		logger:       logger,
		startedAt:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi.Mux implementing the full HTTP surface.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/memories", func(r chi.Router) {
			r.Post("/", withTimeout(10*time.Second, s.handleCreateMemory))
			r.Get("/", s.handleListMemories)
			r.Post("/bulk", withTimeout(60*time.Second, s.handleBulkIngest))
			r.Post("/bulk-delete", s.handleBulkDelete)
			r.Post("/search", withTimeout(5*time.Second, s.handleSearch))
			r.Get("/export", s.handleExport)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetMemory)
				r.Delete("/", s.handleDeleteMemory)
			})
		})

		r.Post("/consolidate", s.handleConsolidate)

		r.Route("/contradictions", func(r chi.Router) {
			r.Get("/", s.handleListContradictions)
			r.Post("/{id}/resolve", s.handleResolveContradiction)
		})

		// Legacy alias (§9 Open Question #1): unresolved-only, simplified envelope.
		r.Get("/conflicts", s.handleConflicts)
	})
	return r
}

func withTimeout(d time.Duration, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		h(w, r.WithContext(ctx))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Status(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, domain.NewError("health", domain.ErrStoreUnavailable, ""))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
