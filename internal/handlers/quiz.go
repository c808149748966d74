package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"aiact-rag/internal/contextutil"
	"aiact-rag/internal/quiz"
)

const maxQuizQuestions = 10

// QuizService generates study questions from the active index.
type QuizService interface {
	Quiz(ctx context.Context, count int) ([]quiz.Question, error)
}

// QuizHandler handles HTTP requests for quiz generation.
type QuizHandler struct {
	service QuizService
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(service QuizService) *QuizHandler {
	return &QuizHandler{service: service}
}

// QuizRequest represents the HTTP request payload for quiz generation.
type QuizRequest struct {
	Count int `json:"count,omitempty"`
}

// QuizResponse carries the generated questions.
type QuizResponse struct {
	Questions []quiz.Question `json:"questions"`
}

// ServeHTTP generates multiple-choice questions from indexed chunks.
func (h *QuizHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req QuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	if req.Count > maxQuizQuestions {
		req.Count = maxQuizQuestions
	}

	questions, err := h.service.Quiz(ctx, req.Count)
	if err != nil {
		writePipelineError(ctx, w, err, "Failed to generate quiz")
		return
	}

	writeJSON(w, http.StatusOK, QuizResponse{Questions: questions})
}
