package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks aiact-rag/internal/vectorstore VectorStore

import (
	"context"
	"math"
	"sort"
)

// Entry is one persisted index entry: a chunk embedding plus the
// metadata needed to cite it.
type Entry struct {
	ID       string
	Vector   []float32
	Locator  string
	SubIndex int
	Ordinal  int
	Text     string
}

// SearchResult is one scored entry from a similarity search.
type SearchResult struct {
	EntryID  string
	Score    float32
	Locator  string
	SubIndex int
	Ordinal  int
	Text     string
}

// VectorStore persists index entries and answers nearest-neighbor
// queries. Indexes are rebuilt wholesale: Replace swaps the full entry
// set atomically, there is no partial mutation.
type VectorStore interface {
	// Replace atomically replaces all entries with the given set.
	Replace(ctx context.Context, entries []Entry) error

	// Search returns the k nearest entries by cosine similarity,
	// highest score first, ties broken by ascending ordinal. Searching
	// an empty store returns an empty slice, not an error.
	Search(ctx context.Context, query []float32, k int) ([]SearchResult, error)

	// List returns all entries in document order. Implementations may
	// omit vectors; callers that only need metadata must not rely on
	// Entry.Vector being set.
	List(ctx context.Context) ([]Entry, error)

	// Count returns the number of persisted entries.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying connection.
	Close() error
}

// Cosine computes the cosine similarity of two vectors. Mismatched or
// zero-length vectors score 0.
func Cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// sortResults orders results by score descending, ordinal ascending.
// Shared by backends so ranking is identical regardless of storage.
func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Ordinal < results[j].Ordinal
	})
}
