package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mason50x/sentinel/internal/events"
	"github.com/mason50x/sentinel/internal/version"
)

// maxEventBody bounds hook payloads; lifecycle events are tiny.
const maxEventBody = 64 * 1024

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime"`
}

// simulateRequest is the body of POST /simulate
type simulateRequest struct {
	Action string `json:"action"`
}

// handleHook ingests one lifecycle event from the agent's hooks.
// POST /hook, body: JSON event.
func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.handleNotFound(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	ev, err := events.Decode(body)
	if err != nil {
		if !errors.Is(err, events.ErrMalformedEvent) {
			s.log.WithError(err).Warn("unexpected decode failure")
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	s.tracker.Submit(ev)

	s.log.WithField("kind", events.ParseKind(ev.Kind)).Debug("event received")

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleStatus answers the polling consumer.
// GET /status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.handleNotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

// handleHistory returns the retained event records, most recent first.
// GET /history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.handleNotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, s.tracker.History())
}

// handleSimulate injects a synthetic event, for manual testing of the
// consumer without a running agent.
// POST /simulate, body: {"action": "start"|"stop"|"task_start"}.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.handleNotFound(w, r)
		return
	}

	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	switch req.Action {
	case "start":
		s.tracker.Submit(events.Event{
			Kind:      events.KindSessionStart.String(),
			SessionID: "simulated",
		})
	case "stop":
		s.tracker.Submit(events.Event{
			Kind: events.KindSessionEnd.String(),
		})
	case "task_start":
		s.tracker.Submit(events.Event{
			Kind:     events.KindTaskStart.String(),
			TaskID:   uuid.NewString(),
			ToolName: "simulated",
		})
	default:
		// Unknown actions are a no-op that still reports success.
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  s.tracker.Snapshot(),
	})
}

// handleHealth reports process liveness.
// GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.handleNotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   version.Info(),
		Uptime:    time.Since(s.startTime).String(),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}
