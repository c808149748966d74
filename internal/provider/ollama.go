package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// ollamaHost resolves the Ollama base URL: an explicit host from
// configuration wins, otherwise the OLLAMA_HOST environment default.
func ollamaHost(host string) (*url.URL, error) {
	if host == "" {
		return envconfig.Host(), nil
	}
	parsed, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	return parsed, nil
}

// OllamaEmbedder generates embeddings through a local Ollama server.
type OllamaEmbedder struct {
	Client     *api.Client
	Model      string
	Dimensions int
}

// NewOllamaEmbedder creates an embedder backed by Ollama. host may be
// empty to use the OLLAMA_HOST default.
func NewOllamaEmbedder(host, model string, dimensions int) (*OllamaEmbedder, error) {
	base, err := ollamaHost(host)
	if err != nil {
		return nil, err
	}
	return &OllamaEmbedder{
		Client:     api.NewClient(base, http.DefaultClient),
		Model:      model,
		Dimensions: dimensions,
	}, nil
}

// Fingerprint identifies this embedder configuration.
func (e *OllamaEmbedder) Fingerprint() Fingerprint {
	return Fingerprint{Provider: "ollama", Model: e.Model, Dimensions: e.Dimensions}
}

// EmbedTexts generates embeddings for the given texts in one batch
// request, validating every vector against the expected size.
func (e *OllamaEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, &EmbeddingError{Provider: "ollama", Err: fmt.Errorf("empty input array")}
	}

	resp, err := e.Client.Embed(ctx, &api.EmbedRequest{
		Model: e.Model,
		Input: texts,
	})
	if err != nil {
		return nil, &EmbeddingError{Provider: "ollama", Err: fmt.Errorf("embed request failed: %w", err)}
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, &EmbeddingError{Provider: "ollama", Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))}
	}

	result := make([][]float32, len(resp.Embeddings))
	for i, vec := range resp.Embeddings {
		if len(vec) != e.Dimensions {
			return nil, &EmbeddingError{Provider: "ollama", Err: fmt.Errorf("embedding %d has size %d, expected %d", i, len(vec), e.Dimensions)}
		}
		result[i] = vec
	}

	return result, nil
}

// OllamaGenerator produces completions through a local Ollama server.
type OllamaGenerator struct {
	Client *api.Client
	Model  string
}

// NewOllamaGenerator creates a generator backed by Ollama. host may be
// empty to use the OLLAMA_HOST default.
func NewOllamaGenerator(host, model string) (*OllamaGenerator, error) {
	base, err := ollamaHost(host)
	if err != nil {
		return nil, err
	}
	return &OllamaGenerator{
		Client: api.NewClient(base, http.DefaultClient),
		Model:  model,
	}, nil
}

// Name identifies the provider for error reporting.
func (g *OllamaGenerator) Name() string {
	return "ollama"
}

// Generate runs a non-streaming generation request and returns the
// full response text.
func (g *OllamaGenerator) Generate(ctx context.Context, genReq GenerateRequest) (string, error) {
	stream := false
	options := map[string]any{}
	if genReq.Temperature > 0 {
		options["temperature"] = genReq.Temperature
	}
	if genReq.MaxTokens > 0 {
		options["num_predict"] = genReq.MaxTokens
	}

	req := &api.GenerateRequest{
		Model:   g.Model,
		System:  genReq.System,
		Prompt:  genReq.Prompt,
		Stream:  &stream,
		Options: options,
	}

	var output string
	err := g.Client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		output += resp.Response
		return nil
	})
	if err != nil {
		return "", &GenerationError{Provider: "ollama", Err: fmt.Errorf("generate request failed: %w", err)}
	}

	return output, nil
}
