package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"aiact-rag/internal/contextutil"
	"aiact-rag/internal/index"
	"aiact-rag/internal/ingest"
	"aiact-rag/internal/provider"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}

// writePipelineError maps pipeline errors to HTTP status codes:
// malformed input 400, concurrent build 409, provider failures 502,
// anything else 500.
func writePipelineError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "pipeline error", "error", err)

	var parseErr *ingest.ParseError
	var mismatchErr *index.ProviderMismatchError
	var embedErr *provider.EmbeddingError
	var genErr *provider.GenerationError

	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &parseErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, index.ErrIndexBusy):
		writeError(w, http.StatusConflict, "An index build is already in progress")
	case errors.As(err, &mismatchErr):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &embedErr), errors.As(err, &genErr):
		writeError(w, http.StatusBadGateway, "Model provider error")
	default:
		writeError(w, http.StatusInternalServerError, defaultMsg)
	}
}
