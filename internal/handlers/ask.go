package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"aiact-rag/internal/contextutil"
	"aiact-rag/internal/retriever"
	"aiact-rag/internal/synth"
)

// AskService answers questions from the active index.
type AskService interface {
	Ask(ctx context.Context, question string) (synth.Answer, retriever.RetrievalResult, error)
}

// AskHandler handles HTTP requests for grounded question answering.
type AskHandler struct {
	service AskService
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(service AskService) *AskHandler {
	return &AskHandler{service: service}
}

// AskRequest represents the HTTP request payload for questions.
type AskRequest struct {
	Question string `json:"question"`
	// Debug includes the retrieved chunks and their scores in the
	// response.
	Debug bool `json:"debug,omitempty"`
}

// AskResponse represents the HTTP response payload.
type AskResponse struct {
	Answer string `json:"answer"`

	// Citations tie answer spans back to regulation locators.
	Citations []synth.Citation `json:"citations"`

	// Unverified lists sentences whose citations could not be resolved
	// against the retrieved evidence.
	Unverified []string `json:"unverified,omitempty"`

	// Insufficient is set when the index held no relevant evidence and
	// the system declined to answer.
	Insufficient bool `json:"insufficient,omitempty"`

	// Retrieved contains the evidence chunks, only in debug mode.
	Retrieved []retriever.Result `json:"retrieved,omitempty"`
}

// ServeHTTP answers a question using the indexed regulation text.
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Question == "" {
		logger.WarnContext(ctx, "empty question in request")
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}

	answer, retrieval, err := h.service.Ask(ctx, req.Question)
	if err != nil {
		writePipelineError(ctx, w, err, "Failed to answer question")
		return
	}

	resp := AskResponse{
		Answer:       answer.Text,
		Citations:    answer.Citations,
		Unverified:   answer.Unverified,
		Insufficient: answer.Insufficient,
	}
	if req.Debug {
		resp.Retrieved = retrieval.Results
	}

	writeJSON(w, http.StatusOK, resp)
}
