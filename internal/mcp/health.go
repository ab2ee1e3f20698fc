package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// HealthChecker is implemented by storage.QdrantStorage.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler creates an HTTP handler for the /health endpoint. Every
// named dependency is checked; any failure turns the response into a 503.
func NewHealthHandler(deps map[string]HealthChecker) http.HandlerFunc {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Status:    "healthy",
			Checks:    make(map[string]string, len(deps)),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		status := http.StatusOK
		for _, name := range names {
			if err := deps[name].Health(ctx); err != nil {
				response.Checks[name] = "disconnected"
				response.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			response.Checks[name] = "connected"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}
}
