package synth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"aiact-rag/internal/contextutil"
	"aiact-rag/internal/provider"
	"aiact-rag/internal/retriever"
)

// InsufficientAnswer is returned when no retrieved chunk reaches the
// relevance floor: the pipeline hedges instead of guessing.
const InsufficientAnswer = "Insufficient information: the indexed regulation text does not contain enough relevant material to answer this question."

// Citation ties a span of the answer back to a retrieved chunk. The
// locator always comes from the retrieval result; citations that do
// not resolve to a retrieved locator are dropped, never invented.
type Citation struct {
	Locator string `json:"locator"`
	Quote   string `json:"quote"`
}

// Answer is a grounded, citation-validated answer.
type Answer struct {
	// Text is the generated answer.
	Text string `json:"text"`
	// Citations maps answer spans to retrieved locators.
	Citations []Citation `json:"citations"`
	// Unverified lists sentences whose citations did not resolve to a
	// retrieved locator. Their claims could not be grounded.
	Unverified []string `json:"unverified,omitempty"`
	// Insufficient is set when the answer is the insufficient-evidence
	// hedge rather than a grounded answer.
	Insufficient bool `json:"insufficient,omitempty"`
}

// Options configures the synthesizer.
type Options struct {
	// RelevanceFloor is the minimum vector similarity for a retrieved
	// chunk to count as usable evidence.
	RelevanceFloor float32
	// MaxAttempts bounds generation retries for transient failures.
	MaxAttempts int
	// Backoff is the base delay between retries.
	Backoff time.Duration
	// MaxTokens caps the generated answer length.
	MaxTokens int
	// Temperature for generation; low for factual answers.
	Temperature float32
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 2
	}
	if o.Backoff == 0 {
		o.Backoff = time.Second
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = 1000
	}
	if o.Temperature == 0 {
		o.Temperature = 0.1
	}
	return o
}

// Synthesizer turns retrieval results into cited answers.
type Synthesizer struct {
	generator provider.Generator
	opts      Options
	logger    *slog.Logger
}

// New creates a Synthesizer.
func New(generator provider.Generator, opts Options) *Synthesizer {
	return &Synthesizer{
		generator: generator,
		opts:      opts.withDefaults(),
		logger:    slog.Default(),
	}
}

const systemPrompt = "You are an assistant that helps users understand the EU AI Act. " +
	"Answer the question using only the excerpts provided below. " +
	"Cite the source of every claim by writing its locator in square brackets, for example [Article 5]. " +
	"Use only locators that appear in the excerpts; never cite anything else. " +
	"If the excerpts do not contain enough information to answer, reply with exactly: insufficient information."

// Answer builds a grounded prompt from the retrieval result, runs the
// generation step under the caller's context, and validates every
// emitted citation against the retrieved locators.
//
// When no retrieved chunk reaches the relevance floor, no generation
// call is made at all: the insufficient-information hedge is returned
// with an empty citation list. Citation-validation failures are
// downgraded in-band (sentence flagged unverified), never errors.
func (s *Synthesizer) Answer(ctx context.Context, query string, retrieval retriever.RetrievalResult) (Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if !s.hasUsableEvidence(retrieval) {
		logger.InfoContext(ctx, "no chunk reached relevance floor",
			"floor", s.opts.RelevanceFloor, "results", len(retrieval.Results))
		return Answer{
			Text:         InsufficientAnswer,
			Citations:    []Citation{},
			Insufficient: true,
		}, nil
	}

	prompt := s.buildPrompt(query, retrieval)
	logger.DebugContext(ctx, "generation prompt assembled",
		"prompt_length", len(prompt), "chunks", len(retrieval.Results))

	var raw string
	err := provider.Retry(ctx, s.opts.MaxAttempts, s.opts.Backoff, func() error {
		var genErr error
		raw, genErr = s.generator.Generate(ctx, provider.GenerateRequest{
			System:      systemPrompt,
			Prompt:      prompt,
			MaxTokens:   s.opts.MaxTokens,
			Temperature: s.opts.Temperature,
		})
		return genErr
	})
	if err != nil {
		logger.ErrorContext(ctx, "generation failed", "error", err)
		return Answer{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	answer := s.validate(ctx, raw, retrieval)
	logger.InfoContext(ctx, "answer synthesized",
		"answer_length", len(answer.Text),
		"citations", len(answer.Citations),
		"unverified", len(answer.Unverified),
		"insufficient", answer.Insufficient)
	return answer, nil
}

// hasUsableEvidence reports whether any retrieved chunk's vector
// similarity reaches the relevance floor.
func (s *Synthesizer) hasUsableEvidence(retrieval retriever.RetrievalResult) bool {
	for _, r := range retrieval.Results {
		if r.VectorScore >= s.opts.RelevanceFloor {
			return true
		}
	}
	return false
}

// buildPrompt embeds only the retrieved chunk texts and their
// locators; nothing outside the retrieval reaches the model.
func (s *Synthesizer) buildPrompt(query string, retrieval retriever.RetrievalResult) string {
	var b strings.Builder
	b.WriteString("--- Excerpts from the regulation ---\n\n")
	for _, r := range retrieval.Results {
		fmt.Fprintf(&b, "[%s] (part %d)\n%s\n\n", r.Locator, r.SubIndex+1, r.Text)
	}
	b.WriteString("--- End excerpts ---\n\n")
	fmt.Fprintf(&b, "Question: %s\n", query)
	return b.String()
}

// isDecline reports whether the model followed the system prompt's
// instruction to decline. Anchored at the start of the answer: a
// grounded answer that merely mentions the phrase is not a decline.
func isDecline(text string) bool {
	return strings.HasPrefix(strings.ToLower(text), "insufficient information")
}

// validate checks every citation marker in the generated text against
// the locators actually retrieved. Markers that resolve become
// Citations carrying their sentence as the quoted span; markers that
// do not are dropped and the sentence is flagged unverified. This gate
// is what separates the pipeline from an ungrounded chat completion.
func (s *Synthesizer) validate(ctx context.Context, raw string, retrieval retriever.RetrievalResult) Answer {
	logger := contextutil.LoggerFromContext(ctx)

	text := strings.TrimSpace(raw)
	answer := Answer{Text: text, Citations: []Citation{}}

	if isDecline(text) {
		answer.Insufficient = true
		return answer
	}

	locators := retrieval.Locators()
	seenCitations := make(map[string]struct{})

	for _, sentence := range splitSentences(text) {
		markers := citationMarkerRe.FindAllStringSubmatch(sentence, -1)
		flagged := false
		for _, marker := range markers {
			cited := strings.TrimSpace(marker[1])
			canonical, ok := matchLocator(cited, locators)
			if !ok {
				if !flagged {
					answer.Unverified = append(answer.Unverified, sentence)
					flagged = true
				}
				logger.WarnContext(ctx, "dropped citation to unknown locator", "cited", cited)
				continue
			}
			key := canonical + "\x00" + sentence
			if _, dup := seenCitations[key]; dup {
				continue
			}
			seenCitations[key] = struct{}{}
			answer.Citations = append(answer.Citations, Citation{
				Locator: canonical,
				Quote:   sentence,
			})
		}
	}

	return answer
}
