package setup

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"aiact-rag/internal/config"
	"aiact-rag/internal/index"
	"aiact-rag/internal/provider"
	"aiact-rag/internal/vectorstore"
)

// NewEmbedder constructs the embedding client selected by the config.
func NewEmbedder(cfg *config.Config) (provider.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return provider.NewOllamaEmbedder(cfg.OllamaHost, cfg.EmbeddingModelName, cfg.EmbeddingDimensions)
	default:
		return provider.NewOpenAIEmbedder(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDimensions), nil
	}
}

// NewGenerator constructs the generation client selected by the config.
func NewGenerator(cfg *config.Config) (provider.Generator, error) {
	switch cfg.Provider {
	case "ollama":
		return provider.NewOllamaGenerator(cfg.OllamaHost, cfg.LLMModelName)
	default:
		return provider.NewOpenAIGenerator(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName), nil
	}
}

// NewStoreOpener returns the store opener for the configured vector
// backend. SQLite keeps its database file inside the index location;
// qdrant and pgvector derive a per-location collection or table name
// so distinct indexes never share entries.
func NewStoreOpener(cfg *config.Config) (index.StoreOpener, error) {
	switch cfg.Backend {
	case "sqlite":
		return func(location string) (vectorstore.VectorStore, error) {
			return vectorstore.NewSQLiteStore(filepath.Join(location, "entries.db"))
		}, nil
	case "qdrant":
		return func(location string) (vectorstore.VectorStore, error) {
			alias := cfg.QdrantCollection + "_" + identifierFor(location)
			return vectorstore.NewQdrantStore(cfg.QdrantURL, alias, cfg.EmbeddingDimensions)
		}, nil
	case "pgvector":
		return func(location string) (vectorstore.VectorStore, error) {
			table := "rag_" + identifierFor(location)
			return vectorstore.NewPgVectorStore(context.Background(), cfg.PostgresDSN, table, cfg.EmbeddingDimensions)
		}, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
}

// identifierFor folds an index location's base name into a safe
// collection/table identifier.
func identifierFor(location string) string {
	base := strings.ToLower(filepath.Base(location))
	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		if unicode.IsLower(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
