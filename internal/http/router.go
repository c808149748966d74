package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"aiact-rag/internal/handlers"
	"aiact-rag/internal/pipeline"
)

// NewRouter creates the HTTP router over the pipeline.
func NewRouter(p *pipeline.Pipeline) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	askHandler := handlers.NewAskHandler(p)
	indexHandler := handlers.NewIndexHandler(p)
	quizHandler := handlers.NewQuizHandler(p)
	articlesHandler := handlers.NewArticlesHandler(p)
	healthHandler := handlers.NewHealthHandler(p)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodGet, "/index", indexHandler)
		r.Method(http.MethodPost, "/index", indexHandler)
		r.Method(http.MethodPost, "/quiz", quizHandler)
		r.Method(http.MethodGet, "/articles", articlesHandler)
	})
	r.Method(http.MethodGet, "/health", healthHandler)

	return r
}
