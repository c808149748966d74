package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"aiact-rag/internal/contextutil"
	"aiact-rag/internal/provider"
	"aiact-rag/internal/vectorstore"
)

// Index is the read view the retriever needs over a built index.
// *index.Handle satisfies it.
type Index interface {
	Search(ctx context.Context, query []float32, k int) ([]vectorstore.SearchResult, error)
}

// Result is one retrieved chunk with its scores.
type Result struct {
	EntryID string `json:"entry_id"`
	// VectorScore is the cosine similarity from the index search.
	VectorScore float32 `json:"score_vector"`
	// LexicalScore is the bounded lexical-overlap score.
	LexicalScore float32 `json:"score_lexical"`
	// Score is the final blended score results are ranked by.
	Score    float32 `json:"score"`
	Locator  string  `json:"locator"`
	SubIndex int     `json:"sub_index"`
	Ordinal  int     `json:"ordinal"`
	Text     string  `json:"text"`
}

// RetrievalResult is the ranked evidence set for one query. It is
// ephemeral: recomputed per query, never persisted.
type RetrievalResult struct {
	Query   string
	Results []Result
}

// Locators returns the distinct locators present in the result set,
// in rank order.
func (rr RetrievalResult) Locators() []string {
	seen := make(map[string]struct{}, len(rr.Results))
	var locators []string
	for _, r := range rr.Results {
		if _, ok := seen[r.Locator]; ok {
			continue
		}
		seen[r.Locator] = struct{}{}
		locators = append(locators, r.Locator)
	}
	return locators
}

// Retriever embeds queries and ranks index entries against them.
type Retriever struct {
	embedder provider.Embedder
	idx      Index
	logger   *slog.Logger
}

// New creates a Retriever over an opened index. The index handle is
// responsible for having validated the embedding fingerprint; the
// retriever assumes query vectors and index vectors share a space.
func New(embedder provider.Embedder, idx Index) *Retriever {
	return &Retriever{
		embedder: embedder,
		idx:      idx,
		logger:   slog.Default(),
	}
}

// Retrieve embeds the query, searches the index, and re-ranks with a
// bounded lexical-overlap score to break near-ties. At most k results
// are returned; fewer only when the index holds fewer entries. The
// ranking is deterministic for a fixed index and query: final score
// descending, document ordinal ascending.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (RetrievalResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if query == "" {
		return RetrievalResult{}, fmt.Errorf("query must not be empty")
	}
	if k <= 0 {
		return RetrievalResult{}, fmt.Errorf("k must be greater than 0")
	}

	vectors, err := r.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return RetrievalResult{}, fmt.Errorf("no embedding returned for query")
	}

	searchResults, err := r.idx.Search(ctx, vectors[0], k)
	if err != nil {
		return RetrievalResult{}, fmt.Errorf("failed to search index: %w", err)
	}

	results := make([]Result, 0, len(searchResults))
	for _, sr := range searchResults {
		lexical := lexicalScore(query, sr.Text, sr.Locator)
		results = append(results, Result{
			EntryID:      sr.EntryID,
			VectorScore:  sr.Score,
			LexicalScore: lexical,
			Score:        sr.Score + lexical,
			Locator:      sr.Locator,
			SubIndex:     sr.SubIndex,
			Ordinal:      sr.Ordinal,
			Text:         sr.Text,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Ordinal < results[j].Ordinal
	})
	if len(results) > k {
		results = results[:k]
	}

	logger.InfoContext(ctx, "retrieval completed", "k", k, "results", len(results))
	if len(results) > 0 {
		logger.DebugContext(ctx, "top result",
			"locator", results[0].Locator, "score", results[0].Score,
			"score_vector", results[0].VectorScore, "score_lexical", results[0].LexicalScore)
	}

	return RetrievalResult{Query: query, Results: results}, nil
}
