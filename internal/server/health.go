// Package server serves liveness, readiness and Prometheus metrics over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// LivenessHandler fails only when the process should be restarted.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker.Liveness() {
			writeHealth(w, logger, http.StatusOK, HealthResponse{Status: "alive"})
			return
		}
		writeHealth(w, logger, http.StatusServiceUnavailable, HealthResponse{Status: "not alive"})
	}
}

// ReadinessHandler reports whether the socket listener and log accept work,
// with per-component checks and ring statistics in the body.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{Status: "ready", Checks: checker.GetStatus()}
		code := http.StatusOK

		if !checker.Readiness(r.Context()) {
			response.Status = "not ready"
			code = http.StatusServiceUnavailable
		}
		writeHealth(w, logger, code, response)
	}
}

func writeHealth(w http.ResponseWriter, logger *slog.Logger, code int, response HealthResponse) {
	response.Timestamp = time.Now().UTC().Format(time.RFC3339)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode health response", "status", response.Status, "error", err)
	}
}
