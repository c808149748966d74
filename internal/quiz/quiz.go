package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"aiact-rag/internal/contextutil"
	"aiact-rag/internal/provider"
)

// Question is one multiple-choice question generated from an indexed
// chunk. The locator points at the regulation text the question and
// its answer are drawn from.
type Question struct {
	Prompt  string   `json:"question"`
	Choices []string `json:"choices"`
	Answer  string   `json:"answer"`
	Locator string   `json:"locator"`
}

// Generator produces study questions from regulation chunks.
type Generator struct {
	generator   provider.Generator
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

// New creates a quiz Generator.
func New(gen provider.Generator) *Generator {
	return &Generator{
		generator:   gen,
		maxAttempts: 2,
		backoff:     time.Second,
		logger:      slog.Default(),
	}
}

const quizSystemPrompt = "You write multiple-choice study questions about the EU AI Act. " +
	"Base the question and the correct answer strictly on the provided excerpt. " +
	"Respond with a single JSON object and nothing else, using this shape: " +
	`{"question": "...", "choices": ["...", "...", "...", "..."], "answer": "..."}` +
	" with exactly 4 choices and the answer copied verbatim from the choices."

// FromChunk generates one multiple-choice question grounded in the
// given chunk text. The generation output must be a JSON object with
// exactly four choices and an answer among them; anything else is
// rejected.
func (g *Generator) FromChunk(ctx context.Context, locator, text string) (Question, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(text) == "" {
		return Question{}, fmt.Errorf("chunk text must not be empty")
	}

	prompt := fmt.Sprintf("Excerpt from %s:\n\n%s\n\nWrite one multiple-choice question about this excerpt.", locator, text)

	var raw string
	err := provider.Retry(ctx, g.maxAttempts, g.backoff, func() error {
		var genErr error
		raw, genErr = g.generator.Generate(ctx, provider.GenerateRequest{
			System:      quizSystemPrompt,
			Prompt:      prompt,
			MaxTokens:   500,
			Temperature: 0.3,
		})
		return genErr
	})
	if err != nil {
		return Question{}, fmt.Errorf("failed to generate question: %w", err)
	}

	question, err := parseQuestion(raw)
	if err != nil {
		logger.WarnContext(ctx, "rejected malformed quiz output", "locator", locator, "error", err)
		return Question{}, err
	}
	question.Locator = locator

	return question, nil
}

// parseQuestion decodes and validates the model's JSON output. Code
// fences around the JSON are tolerated.
func parseQuestion(raw string) (Question, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var q Question
	if err := json.Unmarshal([]byte(cleaned), &q); err != nil {
		return Question{}, fmt.Errorf("generation output is not valid JSON: %w", err)
	}

	if strings.TrimSpace(q.Prompt) == "" {
		return Question{}, fmt.Errorf("generated question is empty")
	}
	if len(q.Choices) != 4 {
		return Question{}, fmt.Errorf("expected 4 choices, got %d", len(q.Choices))
	}
	found := false
	for _, choice := range q.Choices {
		if choice == q.Answer {
			found = true
			break
		}
	}
	if !found {
		return Question{}, fmt.Errorf("answer %q is not among the choices", q.Answer)
	}

	return q, nil
}
