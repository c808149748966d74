package config

import (
	"log/slog"
	"path/filepath"
	"testing"
)

// setRequired sets the minimum environment for Load to succeed,
// pointing the index root into a temp directory.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("EMBEDDING_DIMENSIONS", "768")
	t.Setenv("INDEX_ROOT", filepath.Join(t.TempDir(), "indexes"))
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", cfg.Provider)
	}
	if cfg.Backend != "sqlite" {
		t.Errorf("Backend = %q, want sqlite", cfg.Backend)
	}
	if cfg.MaxTokens != 512 || cfg.OverlapTokens != 64 {
		t.Errorf("chunking = %d/%d, want 512/64", cfg.MaxTokens, cfg.OverlapTokens)
	}
	if cfg.TopK != 4 {
		t.Errorf("TopK = %d, want 4", cfg.TopK)
	}
	if cfg.RelevanceFloor != 0.30 {
		t.Errorf("RelevanceFloor = %v, want 0.30", cfg.RelevanceFloor)
	}
	if cfg.APIPort != "9000" {
		t.Errorf("APIPort = %q, want 9000", cfg.APIPort)
	}
	if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "text" {
		t.Errorf("logging = %v/%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoad_MissingDimensions(t *testing.T) {
	t.Setenv("INDEX_ROOT", filepath.Join(t.TempDir(), "indexes"))
	t.Setenv("EMBEDDING_DIMENSIONS", "")

	if _, err := Load(); err == nil {
		t.Error("Load() without EMBEDDING_DIMENSIONS expected error")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad provider", key: "PROVIDER", value: "bedrock"},
		{name: "bad backend", key: "VECTOR_BACKEND", value: "faiss"},
		{name: "bad dimensions", key: "EMBEDDING_DIMENSIONS", value: "not-a-number"},
		{name: "negative dimensions", key: "EMBEDDING_DIMENSIONS", value: "-1"},
		{name: "bad top-k", key: "RETRIEVAL_TOP_K", value: "0"},
		{name: "bad floor", key: "RELEVANCE_FLOOR", value: "1.5"},
		{name: "bad log level", key: "LOG_LEVEL", value: "verbose"},
		{name: "bad log format", key: "LOG_FORMAT", value: "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s expected error", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_PgVectorRequiresDSN(t *testing.T) {
	setRequired(t)
	t.Setenv("VECTOR_BACKEND", "pgvector")
	t.Setenv("POSTGRES_DSN", "")

	if _, err := Load(); err == nil {
		t.Error("Load() with pgvector backend and no DSN expected error")
	}

	t.Setenv("POSTGRES_DSN", "postgres://localhost/rag")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Backend != "pgvector" {
		t.Errorf("Backend = %q, want pgvector", cfg.Backend)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PROVIDER", "ollama")
	t.Setenv("VECTOR_BACKEND", "qdrant")
	t.Setenv("CHUNK_MAX_TOKENS", "256")
	t.Setenv("CHUNK_OVERLAP_TOKENS", "32")
	t.Setenv("RETRIEVAL_TOP_K", "8")
	t.Setenv("RELEVANCE_FLOOR", "0.45")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Provider != "ollama" || cfg.Backend != "qdrant" {
		t.Errorf("provider/backend = %q/%q", cfg.Provider, cfg.Backend)
	}
	if cfg.MaxTokens != 256 || cfg.OverlapTokens != 32 || cfg.TopK != 8 {
		t.Errorf("tuning = %d/%d/%d", cfg.MaxTokens, cfg.OverlapTokens, cfg.TopK)
	}
	if cfg.RelevanceFloor != 0.45 {
		t.Errorf("RelevanceFloor = %v", cfg.RelevanceFloor)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "json" {
		t.Errorf("logging = %v/%q", cfg.LogLevel, cfg.LogFormat)
	}
}
