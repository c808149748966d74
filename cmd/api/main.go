package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"aiact-rag/internal/config"
	"aiact-rag/internal/http"
	"aiact-rag/internal/pipeline"
	"aiact-rag/internal/setup"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	embedder, err := setup.NewEmbedder(cfg)
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}
	generator, err := setup.NewGenerator(cfg)
	if err != nil {
		log.Fatalf("Failed to create generation client: %v", err)
	}
	opener, err := setup.NewStoreOpener(cfg)
	if err != nil {
		log.Fatalf("Failed to create vector store opener: %v", err)
	}
	slog.Info("Providers initialized",
		"provider", cfg.Provider, "backend", cfg.Backend,
		"fingerprint", embedder.Fingerprint().String())

	// Validate the embedding client before serving traffic (fail-fast)
	ctx := context.Background()
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.EmbeddingDimensions {
		log.Fatalf("Embedding vector size mismatch: expected %d", cfg.EmbeddingDimensions)
	}
	slog.Info("Embedding client validated", "dimensions", cfg.EmbeddingDimensions)

	p, err := pipeline.New(embedder, generator, opener, pipeline.Options{
		IndexRoot:      cfg.IndexRoot,
		MaxTokens:      cfg.MaxTokens,
		OverlapTokens:  cfg.OverlapTokens,
		TopK:           cfg.TopK,
		RelevanceFloor: float32(cfg.RelevanceFloor),
	})
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}
	defer func() {
		_ = p.Close()
	}()

	router := http.NewRouter(p)

	// Ingest the configured document in the background after the
	// router is ready; /health reports degraded until it completes.
	if cfg.DocumentPath != "" {
		go func() {
			ingestCtx := context.Background()
			slog.Info("Starting background document ingestion", "path", cfg.DocumentPath)
			if handle, err := p.IngestDocument(ingestCtx, cfg.DocumentPath); err != nil {
				slog.Error("Document ingestion failed", "error", err)
			} else {
				slog.Info("Document ingestion completed",
					"location", handle.Location, "entries", handle.Manifest.EntryCount)
			}
		}()
	}

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
