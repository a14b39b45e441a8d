package handler

import (
	"net/http"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

// Version is reported by the health endpoint
var Version = "0.1.0"

// Health returns the health status of the service. An unhealthy required
// dependency makes the service unhealthy; an optional one only degrades it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	services := make(map[string]string, len(h.deps))
	status := "healthy"
	for _, dep := range h.deps {
		if err := dep.Checker.HealthCheck(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", dep.Name).Msg("health check failed")
			services[dep.Name] = "unhealthy"
			if dep.Required {
				status = "unhealthy"
			} else if status == "healthy" {
				status = "degraded"
			}
			continue
		}
		services[dep.Name] = "healthy"
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{
		Status:   status,
		Version:  Version,
		Services: services,
	})
}

// Ready returns whether the required dependencies accept requests
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	for _, dep := range h.deps {
		if !dep.Required {
			continue
		}
		if err := dep.Checker.HealthCheck(r.Context()); err != nil {
			http.Error(w, dep.Name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
