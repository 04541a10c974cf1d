// ABOUTME: HTTP handler methods for all server endpoints.
// ABOUTME: Covers run creation, lifecycle controls, SSE progress events, credits, and preview.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/postpilot-io/postpilot/content"
	"github.com/postpilot-io/postpilot/pipeline"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateRun accepts a run config as JSON and starts the run. The
// response carries the initial run state; a run rejected for insufficient
// credit is still created, in an error state, and returned with 402.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var cfg pipeline.RunConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid run config: %v", err))
		return
	}

	// The run outlives this request: net/http cancels r.Context() as soon
	// as the handler returns, which would kill any step still executing.
	// Validation and the credit reserve happen synchronously below; the
	// step loop needs a context detached from the request's cancellation.
	run, err := s.orch.Start(context.WithoutCancel(r.Context()), cfg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	state := run.State()
	status := http.StatusCreated
	if state.Status == pipeline.StatusError && strings.Contains(state.Error, pipeline.ErrInsufficientCredit.Error()) {
		status = http.StatusPaymentRequired
	}
	writeJSON(w, status, state)
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.List())
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.orch.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run.State())
}

// lifecycleHandler wraps a run control method shared by pause, resume, and
// cancel: look up the run, apply the transition, report the new state.
func (s *Server) lifecycleHandler(transition func(*pipeline.Run) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := s.orch.Get(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if err := transition(run); err != nil {
			if errors.Is(err, pipeline.ErrInvalidTransition) {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, run.State())
	}
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.lifecycleHandler((*pipeline.Run).Pause)(w, r)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.lifecycleHandler((*pipeline.Run).Resume)(w, r)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.lifecycleHandler((*pipeline.Run).Cancel)(w, r)
}

// handleRunEvents streams step results for one run as server-sent events.
// The stream closes when the run reaches a terminal state or the client
// disconnects. Results emitted before the subscription are replayed first
// so a late subscriber still sees the full history.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	run, err := s.orch.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sink := pipeline.NewChannelSink(64)
	run.Subscribe(sink)

	writeEvent := func(result pipeline.StepResult) {
		payload, err := json.Marshal(result)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: step\ndata: %s\n\n", payload)
		flusher.Flush()
	}

	// Replay history emitted before the subscription. A result can land in
	// both the snapshot and the sink when it arrives between Subscribe and
	// State; step IDs are unique within a run, so they dedup the overlap.
	replayed := make(map[string]bool)
	for _, result := range run.State().Results {
		writeEvent(result)
		replayed[result.StepID] = true
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case result := <-sink.C:
			if replayed[result.StepID] {
				continue
			}
			writeEvent(result)
		case <-run.Done():
			// Drain anything queued before the terminal state.
			for {
				select {
				case result := <-sink.C:
					if replayed[result.StepID] {
						continue
					}
					writeEvent(result)
				default:
					state := run.State()
					payload, _ := json.Marshal(state)
					fmt.Fprintf(w, "event: done\ndata: %s\n\n", payload)
					flusher.Flush()
					return
				}
			}
		}
	}
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	balance, err := s.ledger.Check(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"available": balance.Available,
		"remaining": balance.Remaining,
		"total":     balance.Total,
		"used":      balance.Used,
	})
}

// handlePreview renders markdown post text to HTML for a client-side preview.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req struct {
		Markdown string `json:"markdown"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid preview request: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"html": string(content.RenderMarkdown(req.Markdown)),
	})
}
