// Package server implements the health, ring status and metrics endpoints.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jittakal/ringstore/pkg/ring"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// RingStatus is one ring in the /rings response.
type RingStatus struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	Frozen         bool   `json:"frozen"`
	NodeCount      int    `json:"node_count"`
	ObjectsPerNode int    `json:"objects_per_node"`
	ObjectSize     int    `json:"object_size"`
	PendingNodes   int    `json:"pending_nodes"`
	PushedObjects  uint64 `json:"pushed_objects"`
	PulledObjects  uint64 `json:"pulled_objects"`
	FinalObjects   uint64 `json:"final_objects"`
	ShortWrites    uint64 `json:"short_writes"`
	Laps           uint64 `json:"laps"`
}

func newRingStatus(s ring.Stats) RingStatus {
	return RingStatus{
		Name:           s.Name,
		State:          s.State.String(),
		Frozen:         s.Frozen,
		NodeCount:      s.NodeCount,
		ObjectsPerNode: s.ObjectsPerNode,
		ObjectSize:     s.ObjectSize,
		PendingNodes:   s.PendingNodes,
		PushedObjects:  s.PushedObjects,
		PulledObjects:  s.PulledObjects,
		FinalObjects:   s.FinalObjects,
		ShortWrites:    s.ShortWrites,
		Laps:           s.Laps,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// LivenessHandler returns a handler for Kubernetes liveness checks.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "alive",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		statusCode := http.StatusOK

		if !checker.Liveness() {
			response.Status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}

		writeJSON(w, statusCode, response, logger)
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness checks.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "ready",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checker.GetStatus(),
		}
		statusCode := http.StatusOK

		if !checker.Readiness(r.Context()) {
			response.Status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		writeJSON(w, statusCode, response, logger)
	}
}

// RingsHandler returns a handler listing every ring and its counters.
func RingsHandler(rings RingLister, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		stats := rings.Stats()
		out := make([]RingStatus, 0, len(stats))
		for _, s := range stats {
			out = append(out, newRingStatus(s))
		}
		writeJSON(w, http.StatusOK, out, logger)
	}
}
