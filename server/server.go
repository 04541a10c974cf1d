// ABOUTME: HTTP server struct with chi router exposing run lifecycle, credit, and preview endpoints.
// ABOUTME: Configures all routes and wires handler methods against the orchestrator and ledger.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/postpilot-io/postpilot/ledger"
	"github.com/postpilot-io/postpilot/pipeline"
)

// Server holds the chi router and the orchestrator and ledger it fronts.
type Server struct {
	router chi.Router
	orch   *pipeline.Orchestrator
	ledger *ledger.Ledger
}

// NewServer creates a Server with all routes configured. When authToken is
// non-empty, all /api routes require a matching bearer token.
func NewServer(orch *pipeline.Orchestrator, lgr *ledger.Ledger, authToken string) *Server {
	s := &Server{
		orch:   orch,
		ledger: lgr,
	}

	r := chi.NewRouter()
	if authToken != "" {
		r.Use(AuthMiddleware(authToken))
	}

	r.Get("/health", s.handleHealth)

	// Run lifecycle
	r.Post("/api/runs", s.handleCreateRun)
	r.Get("/api/runs", s.handleListRuns)
	r.Get("/api/runs/{id}", s.handleGetRun)
	r.Post("/api/runs/{id}/pause", s.handlePause)
	r.Post("/api/runs/{id}/resume", s.handleResume)
	r.Post("/api/runs/{id}/cancel", s.handleCancel)
	r.Get("/api/runs/{id}/events", s.handleRunEvents)

	// Credits and preview
	r.Get("/api/credits/{owner}", s.handleCredits)
	r.Post("/api/preview", s.handlePreview)

	s.router = r
	return s
}

// ServeHTTP implements the http.Handler interface, delegating to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
