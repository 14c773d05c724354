package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/door-sentinel/internal/authflow"
	"github.com/nerrad567/door-sentinel/internal/door"
)

// defaultStatsWindow is the look-back window for /api/stats when the
// hours query parameter is absent.
const defaultStatsWindow = 24 * time.Hour

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// handleHealth probes each registered dependency and reports per-component
// results. Any failing check degrades the overall status to 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
	}
	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
	}

	status := http.StatusOK
	for _, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		err := check.Checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			resp.Checks[check.Name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "ok"
	}

	writeJSON(w, status, resp)
}

// StatusResponse combines the live authentication and door state.
type StatusResponse struct {
	Auth      authflow.Snapshot `json:"auth"`
	Door      door.Status       `json:"door"`
	Timestamp time.Time         `json:"timestamp"`
}

// handleStatus returns the current authentication session and door state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Auth:      s.auth.Snapshot(),
		Door:      s.door.Status(),
		Timestamp: time.Now().UTC(),
	})
}

// handleEvents returns the most recent access events, newest first.
// The optional limit query parameter caps the page size; the store
// applies its own default and maximum.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := s.events.RecentAccess(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list access events", "error", err)
		writeInternalError(w, "failed to list access events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleStats returns access counts aggregated by result over a
// look-back window. The optional hours query parameter sets the window;
// the default is 24 hours.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	window := defaultStatsWindow
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "hours must be a positive integer")
			return
		}
		window = time.Duration(n) * time.Hour
	}

	since := time.Now().UTC().Add(-window)
	stats, err := s.events.Stats(r.Context(), since)
	if err != nil {
		s.logger.Error("failed to compute access stats", "error", err)
		writeInternalError(w, "failed to compute access stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"since": since,
		"stats": stats,
	})
}
