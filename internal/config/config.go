package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Provider selects the model backend: "openai" (any OpenAI-style
	// API, including llama.cpp servers) or "ollama".
	Provider string

	// OpenAI-style endpoints. The embedding server may differ from the
	// chat server.
	LLMBaseURL       string
	LLMAPIKey        string
	EmbeddingBaseURL string

	// Ollama host, used when Provider is "ollama". Empty means the
	// client's default resolution (OLLAMA_HOST or localhost).
	OllamaHost string

	LLMModelName        string
	EmbeddingModelName  string
	EmbeddingDimensions int

	// Backend selects the vector store: "sqlite", "qdrant" or
	// "pgvector".
	Backend          string
	QdrantURL        string
	QdrantCollection string
	PostgresDSN      string

	// IndexRoot is the directory index locations live under.
	IndexRoot string
	// DocumentPath is the regulation document to ingest at startup.
	// Empty means start without an index and wait for an ingest call.
	DocumentPath string

	MaxTokens      int
	OverlapTokens  int
	TopK           int
	RelevanceFloor float64

	APIPort string

	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a
// Config struct. It applies defaults for optional fields and validates
// the rest before any work starts. If a .env file exists in the
// current directory or a parent, it is loaded first; variables already
// set in the environment take precedence over .env values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	// Walk up from the working directory so binaries run from
	// subdirectories still find the project .env.
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		Provider:           getEnv("PROVIDER", "openai"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		OllamaHost:         getEnv("OLLAMA_HOST", ""),
		LLMModelName:       getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "granite-embedding-278m-multilingual"),
		Backend:            getEnv("VECTOR_BACKEND", "sqlite"),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "regulation"),
		PostgresDSN:        getEnv("POSTGRES_DSN", ""),
		IndexRoot:          getEnv("INDEX_ROOT", "./data/indexes"),
		DocumentPath:       getEnv("DOCUMENT_PATH", ""),
		APIPort:            getEnv("API_PORT", "9000"),
	}

	switch cfg.Provider {
	case "openai", "ollama":
	default:
		return nil, fmt.Errorf("PROVIDER must be \"openai\" or \"ollama\", got %q", cfg.Provider)
	}

	switch cfg.Backend {
	case "sqlite", "qdrant", "pgvector":
	default:
		return nil, fmt.Errorf("VECTOR_BACKEND must be \"sqlite\", \"qdrant\" or \"pgvector\", got %q", cfg.Backend)
	}
	if cfg.Backend == "pgvector" && cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required when VECTOR_BACKEND is pgvector")
	}

	// The embedding dimension must match the model's output size. If it
	// changes, existing indexes carry a different fingerprint and must
	// be rebuilt.
	cfg.EmbeddingDimensions, err = intEnv("EMBEDDING_DIMENSIONS", 0)
	if err != nil {
		return nil, err
	}
	if cfg.EmbeddingDimensions <= 0 {
		return nil, fmt.Errorf("EMBEDDING_DIMENSIONS is required and must be greater than 0")
	}

	cfg.MaxTokens, err = intEnv("CHUNK_MAX_TOKENS", 512)
	if err != nil {
		return nil, err
	}
	cfg.OverlapTokens, err = intEnv("CHUNK_OVERLAP_TOKENS", 64)
	if err != nil {
		return nil, err
	}
	cfg.TopK, err = intEnv("RETRIEVAL_TOP_K", 4)
	if err != nil {
		return nil, err
	}
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("RETRIEVAL_TOP_K must be greater than 0")
	}

	floorStr := getEnv("RELEVANCE_FLOOR", "0.30")
	cfg.RelevanceFloor, err = strconv.ParseFloat(floorStr, 64)
	if err != nil {
		return nil, fmt.Errorf("RELEVANCE_FLOOR must be a valid number: %w", err)
	}
	if cfg.RelevanceFloor < 0 || cfg.RelevanceFloor > 1 {
		return nil, fmt.Errorf("RELEVANCE_FLOOR must be between 0 and 1, got %v", cfg.RelevanceFloor)
	}

	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", cfg.LogFormat)
	}
	switch strings.ToLower(getEnv("LOG_LEVEL", "info")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error")
	}

	if err := os.MkdirAll(cfg.IndexRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index root: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// intEnv parses an integer environment variable with a default.
func intEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return parsed, nil
}
