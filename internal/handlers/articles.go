package handlers

import (
	"context"
	"net/http"

	"aiact-rag/internal/contextutil"
	"aiact-rag/internal/pipeline"
)

// ArticleService lists the sections present in the active index.
type ArticleService interface {
	Articles(ctx context.Context) ([]pipeline.Article, error)
}

// ArticlesHandler handles HTTP requests for browsing indexed sections.
type ArticlesHandler struct {
	service ArticleService
}

// NewArticlesHandler creates a new ArticlesHandler.
func NewArticlesHandler(service ArticleService) *ArticlesHandler {
	return &ArticlesHandler{service: service}
}

// ArticlesResponse lists the indexed sections in document order.
type ArticlesResponse struct {
	Articles []pipeline.Article `json:"articles"`
}

// ServeHTTP lists the distinct locators in the active index.
func (h *ArticlesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	articles, err := h.service.Articles(ctx)
	if err != nil {
		writePipelineError(ctx, w, err, "Failed to list articles")
		return
	}

	writeJSON(w, http.StatusOK, ArticlesResponse{Articles: articles})
}
