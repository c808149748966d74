package handlers

import (
	"net/http"
	"time"

	"aiact-rag/internal/contextutil"
	"aiact-rag/internal/pipeline"
)

// StatusReporter reports the state of the active index.
type StatusReporter interface {
	Status() pipeline.Status
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	reporter StatusReporter
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(reporter StatusReporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Status is "healthy" when an index is active, "degraded" when the
	// service is up but has no index to answer from.
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// ServeHTTP reports service health. The service is degraded, not
// down, while no index is active: builds can still be triggered.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	status := h.reporter.Status()

	checks := make(map[string]string)
	overall := "healthy"
	httpStatus := http.StatusOK
	if status.Ready {
		checks["index"] = "ok"
	} else {
		checks["index"] = "empty"
		overall = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}
