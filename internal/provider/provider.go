package provider

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_providers.go -package=mocks aiact-rag/internal/provider Embedder,Generator

import (
	"context"
	"fmt"
)

// Fingerprint identifies an embedding provider configuration. It is
// recorded in the index manifest at build time and checked again at
// query time; a mismatch means query vectors and index vectors live in
// different spaces and the index must be rebuilt.
type Fingerprint struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%s/%s/%d", f.Provider, f.Model, f.Dimensions)
}

// Embedder turns texts into fixed-size embedding vectors.
type Embedder interface {
	// EmbedTexts returns one vector per input text, each matching the
	// fingerprint's dimension count.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// Fingerprint identifies the provider, model and vector size.
	Fingerprint() Fingerprint
}

// GenerateRequest holds the inputs for one generation call.
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Generator produces natural-language completions. Implementations
// must honor context cancellation so callers can impose timeouts on
// the external call.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	// Name identifies the provider for error reporting.
	Name() string
}
