package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIEmbedder(t *testing.T) {
	client := NewOpenAIEmbedder("http://localhost:8081", "test-key", "test-model", 768)
	if client == nil {
		t.Fatal("NewOpenAIEmbedder() returned nil")
	}
	if client.BaseURL != "http://localhost:8081" {
		t.Errorf("BaseURL = %v, want http://localhost:8081", client.BaseURL)
	}
	if client.Dimensions != 768 {
		t.Errorf("Dimensions = %v, want 768", client.Dimensions)
	}
}

func TestOpenAIEmbedder_Fingerprint(t *testing.T) {
	client := NewOpenAIEmbedder("http://localhost:8081", "key", "granite-embedding", 1024)
	fp := client.Fingerprint()
	if fp.Provider != "openai" || fp.Model != "granite-embedding" || fp.Dimensions != 1024 {
		t.Errorf("Fingerprint() = %+v", fp)
	}
	if fp.String() != "openai/granite-embedding/1024" {
		t.Errorf("Fingerprint().String() = %q", fp.String())
	}
}

func TestOpenAIEmbedder_EmbedTexts(t *testing.T) {
	tests := []struct {
		name       string
		texts      []string
		dimensions int
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantErr    bool
		wantCount  int
	}{
		{
			name:       "successful embedding",
			texts:      []string{"Hello", "World"},
			dimensions: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/embeddings" {
					t.Errorf("expected /v1/embeddings, got %s", r.URL.Path)
				}
				resp := EmbeddingsResponse{
					Data: []EmbeddingData{
						{Embedding: make([]float64, 768)},
						{Embedding: make([]float64, 768)},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantErr:   false,
			wantCount: 2,
		},
		{
			name:       "empty input",
			texts:      []string{},
			dimensions: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				t.Error("server should not be called for empty input")
			},
			wantErr: true,
		},
		{
			name:       "wrong embedding count",
			texts:      []string{"Hello", "World"},
			dimensions: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				resp := EmbeddingsResponse{
					Data: []EmbeddingData{{Embedding: make([]float64, 768)}},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantErr: true,
		},
		{
			name:       "wrong vector size",
			texts:      []string{"Hello"},
			dimensions: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				resp := EmbeddingsResponse{
					Data: []EmbeddingData{{Embedding: make([]float64, 512)}},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantErr: true,
		},
		{
			name:       "server error",
			texts:      []string{"Hello"},
			dimensions: 768,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			client := NewOpenAIEmbedder(server.URL, "test-key", "test-model", tt.dimensions)
			got, err := client.EmbedTexts(context.Background(), tt.texts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("EmbedTexts() expected error")
				}
				var embedErr *EmbeddingError
				if !errors.As(err, &embedErr) {
					t.Errorf("EmbedTexts() error = %T, want *EmbeddingError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EmbedTexts() unexpected error: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Errorf("EmbedTexts() returned %d vectors, want %d", len(got), tt.wantCount)
			}
			for i, vec := range got {
				if len(vec) != tt.dimensions {
					t.Errorf("vector %d has size %d, want %d", i, len(vec), tt.dimensions)
				}
			}
		})
	}
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	tests := []struct {
		name       string
		req        GenerateRequest
		serverResp func(t *testing.T, w http.ResponseWriter, r *http.Request)
		want       string
		wantErr    bool
	}{
		{
			name: "successful generation",
			req:  GenerateRequest{System: "You are helpful.", Prompt: "Question?", MaxTokens: 100, Temperature: 0.1},
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
				}
				var chatReq ChatRequest
				if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
					t.Errorf("failed to decode request: %v", err)
				}
				if len(chatReq.Messages) != 2 {
					t.Errorf("expected 2 messages, got %d", len(chatReq.Messages))
				}
				if chatReq.Messages[0].Role != "system" {
					t.Errorf("first message role = %q, want system", chatReq.Messages[0].Role)
				}

				var resp ChatResponse
				resp.Choices = make([]ChatChoice, 1)
				resp.Choices[0].Message.Content = "The answer [Article 5]."
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			want: "The answer [Article 5].",
		},
		{
			name: "no system message",
			req:  GenerateRequest{Prompt: "Question?"},
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				var chatReq ChatRequest
				_ = json.NewDecoder(r.Body).Decode(&chatReq)
				if len(chatReq.Messages) != 1 {
					t.Errorf("expected 1 message, got %d", len(chatReq.Messages))
				}
				var resp ChatResponse
				resp.Choices = make([]ChatChoice, 1)
				resp.Choices[0].Message.Content = "ok"
				_ = json.NewEncoder(w).Encode(resp)
			},
			want: "ok",
		},
		{
			name: "no choices",
			req:  GenerateRequest{Prompt: "Question?"},
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(ChatResponse{})
			},
			wantErr: true,
		},
		{
			name: "server error",
			req:  GenerateRequest{Prompt: "Question?"},
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.serverResp(t, w, r)
			}))
			defer server.Close()

			client := NewOpenAIGenerator(server.URL, "test-key", "test-model")
			got, err := client.Generate(context.Background(), tt.req)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Generate() expected error")
				}
				var genErr *GenerationError
				if !errors.As(err, &genErr) {
					t.Errorf("Generate() error = %T, want *GenerationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Generate() = %q, want %q", got, tt.want)
			}
		})
	}
}
