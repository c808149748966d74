package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"aiact-rag/internal/config"
	"aiact-rag/internal/pipeline"
	"aiact-rag/internal/setup"
)

// One-shot index builder: ingests a document, builds its index and
// exits. Useful for building indexes ahead of deploying the API.
func main() {
	docPath := flag.String("doc", "", "path to the document to ingest (defaults to DOCUMENT_PATH)")
	force := flag.Bool("force", false, "rebuild even when the existing index is up to date")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	slog.SetDefault(slog.New(handler))

	path := *docPath
	if path == "" {
		path = cfg.DocumentPath
	}
	if path == "" {
		log.Fatal("No document given: pass -doc or set DOCUMENT_PATH")
	}

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

	ctx := context.Background()
	handle, err := p.IngestDocument(ctx, path)
	if err != nil {
		log.Fatalf("Index build failed: %v", err)
	}

	if *force {
		if handle, err = p.Rebuild(ctx); err != nil {
			log.Fatalf("Forced rebuild failed: %v", err)
		}
	}

	slog.Info("Index ready",
		"location", handle.Location,
		"entries", handle.Manifest.EntryCount,
		"content_hash", handle.Manifest.ContentHash,
		"fingerprint", handle.Manifest.Fingerprint.String())
}
