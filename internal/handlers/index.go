package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"aiact-rag/internal/contextutil"
	"aiact-rag/internal/index"
	"aiact-rag/internal/pipeline"
)

// IndexService manages the active index.
type IndexService interface {
	IngestDocument(ctx context.Context, path string) (*index.Handle, error)
	Rebuild(ctx context.Context) (*index.Handle, error)
	Status() pipeline.Status
}

// IndexHandler handles HTTP requests for building and rebuilding the
// index.
type IndexHandler struct {
	service IndexService
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(service IndexService) *IndexHandler {
	return &IndexHandler{service: service}
}

// IndexRequest represents the HTTP request payload for index builds.
type IndexRequest struct {
	// Path is the document to ingest. Empty with Rebuild set rebuilds
	// the active index's source document.
	Path    string `json:"path,omitempty"`
	Rebuild bool   `json:"rebuild,omitempty"`
}

// IndexResponse describes the resulting index.
type IndexResponse struct {
	Location      string `json:"location"`
	DocumentTitle string `json:"document_title,omitempty"`
	Entries       int    `json:"entries"`
	ContentHash   string `json:"content_hash"`
	Fingerprint   string `json:"fingerprint"`
}

// ServeHTTP builds or rebuilds the index. GET reports the active
// index's status; POST triggers a build.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.service.Status())
		return
	case http.MethodPost:
	default:
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var handle *index.Handle
	var err error
	switch {
	case req.Rebuild:
		handle, err = h.service.Rebuild(ctx)
	case req.Path != "":
		handle, err = h.service.IngestDocument(ctx, req.Path)
	default:
		writeError(w, http.StatusBadRequest, "Either path or rebuild is required")
		return
	}
	if err != nil {
		writePipelineError(ctx, w, err, "Failed to build index")
		return
	}

	writeJSON(w, http.StatusOK, IndexResponse{
		Location:      handle.Location,
		DocumentTitle: handle.Manifest.DocumentTitle,
		Entries:       handle.Manifest.EntryCount,
		ContentHash:   handle.Manifest.ContentHash,
		Fingerprint:   handle.Manifest.Fingerprint.String(),
	})
}
