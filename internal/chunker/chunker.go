package chunker

import (
	"fmt"
	"strings"

	"aiact-rag/internal/document"
)

const (
	// DefaultMaxTokens bounds a chunk to the context window of common
	// 512-token embedding models.
	DefaultMaxTokens = 512
	// DefaultOverlapTokens is the minimum context shared between
	// adjacent chunks of the same unit.
	DefaultOverlapTokens = 64
)

// ConfigError reports invalid chunking parameters. It is fatal and
// surfaced before any chunking work begins.
type ConfigError struct {
	Field   string
	Value   int
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid chunker config %s=%d: %s", e.Field, e.Value, e.Message)
}

// Config holds chunking parameters.
type Config struct {
	MaxTokens     int
	OverlapTokens int
}

// Validate checks the configuration, returning a ConfigError on the
// first invalid field.
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return &ConfigError{Field: "max_tokens", Value: c.MaxTokens, Message: "must be greater than 0"}
	}
	if c.OverlapTokens < 0 {
		return &ConfigError{Field: "overlap_tokens", Value: c.OverlapTokens, Message: "must not be negative"}
	}
	if c.OverlapTokens >= c.MaxTokens {
		return &ConfigError{Field: "overlap_tokens", Value: c.OverlapTokens, Message: "must be smaller than max_tokens"}
	}
	return nil
}

// Chunker splits TextUnits into overlapping token-bounded chunks.
type Chunker struct {
	cfg Config
}

// New creates a Chunker, validating the configuration first.
func New(cfg Config) (*Chunker, error) {
	if cfg.MaxTokens == 0 && cfg.OverlapTokens == 0 {
		cfg = Config{MaxTokens: DefaultMaxTokens, OverlapTokens: DefaultOverlapTokens}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Config returns the validated configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// Chunk slides a window of MaxTokens with step MaxTokens-OverlapTokens
// over each unit's tokens. The final window of a unit may be shorter
// than MaxTokens but is never empty; every chunk carries its unit's
// locator plus a sub-index, and a document-wide ordinal used as the
// deterministic tie-break in search.
func (c *Chunker) Chunk(units []document.TextUnit) []document.Chunk {
	step := c.cfg.MaxTokens - c.cfg.OverlapTokens

	var chunks []document.Chunk
	ordinal := 0
	for _, unit := range units {
		tokens := Tokenize(unit.Text)
		if len(tokens) == 0 {
			continue
		}

		subIndex := 0
		for start := 0; start < len(tokens); start += step {
			end := start + c.cfg.MaxTokens
			if end > len(tokens) {
				end = len(tokens)
			}
			window := tokens[start:end]
			chunks = append(chunks, document.Chunk{
				Locator:    unit.Locator,
				SubIndex:   subIndex,
				Ordinal:    ordinal,
				Text:       strings.Join(window, " "),
				TokenCount: len(window),
			})
			subIndex++
			ordinal++

			if end == len(tokens) {
				break
			}
		}
	}

	return chunks
}

// Tokenize splits text into whitespace-delimited tokens. The same
// tokenization is used for windowing and for token counting so chunk
// bounds and reported counts always agree.
func Tokenize(text string) []string {
	return strings.Fields(text)
}
