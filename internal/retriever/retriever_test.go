package retriever

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"aiact-rag/internal/provider/mocks"
	"aiact-rag/internal/vectorstore"
)

// fakeIndex returns canned search results.
type fakeIndex struct {
	results []vectorstore.SearchResult
	err     error
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, _ int) ([]vectorstore.SearchResult, error) {
	return f.results, f.err
}

func TestRetrieve_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	embedder := mocks.NewMockEmbedder(ctrl)
	r := New(embedder, &fakeIndex{})

	if _, err := r.Retrieve(context.Background(), "", 4); err == nil {
		t.Error("Retrieve() with empty query expected error")
	}
	if _, err := r.Retrieve(context.Background(), "question", 0); err == nil {
		t.Error("Retrieve() with k=0 expected error")
	}
}

func TestRetrieve_BlendsAndRanks(t *testing.T) {
	ctrl := gomock.NewController(t)
	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), []string{"biometric identification"}).
		Return([][]float32{{1, 0, 0}}, nil)

	// Two near-tied vector scores; lexical overlap should promote the
	// chunk that actually mentions the query terms.
	idx := &fakeIndex{results: []vectorstore.SearchResult{
		{EntryID: "e1", Score: 0.80, Locator: "Article 99", Ordinal: 10, Text: "Penalties for infringements."},
		{EntryID: "e2", Score: 0.79, Locator: "Article 5", Ordinal: 2, Text: "Remote biometric identification systems are prohibited."},
	}}

	r := New(embedder, idx)
	result, err := r.Retrieve(context.Background(), "biometric identification", 4)
	if err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("Retrieve() returned %d results, want 2", len(result.Results))
	}
	if result.Results[0].EntryID != "e2" {
		t.Errorf("top result = %s, want e2 (lexical overlap should win the near-tie)", result.Results[0].EntryID)
	}
	top := result.Results[0]
	if top.Score != top.VectorScore+top.LexicalScore {
		t.Errorf("blended score %v != vector %v + lexical %v", top.Score, top.VectorScore, top.LexicalScore)
	}
	if result.Query != "biometric identification" {
		t.Errorf("result query = %q", result.Query)
	}
}

func TestRetrieve_TrimsToK(t *testing.T) {
	ctrl := gomock.NewController(t)
	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).
		Return([][]float32{{1, 0, 0}}, nil)

	idx := &fakeIndex{results: []vectorstore.SearchResult{
		{EntryID: "e1", Score: 0.9, Ordinal: 0},
		{EntryID: "e2", Score: 0.8, Ordinal: 1},
		{EntryID: "e3", Score: 0.7, Ordinal: 2},
	}}

	r := New(embedder, idx)
	result, err := r.Retrieve(context.Background(), "question", 2)
	if err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	if len(result.Results) != 2 {
		t.Errorf("Retrieve() returned %d results, want 2", len(result.Results))
	}
}

func TestRetrieve_TieBreakByOrdinal(t *testing.T) {
	ctrl := gomock.NewController(t)
	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).
		Return([][]float32{{1, 0, 0}}, nil)

	// Identical scores and no lexical signal: document order decides.
	idx := &fakeIndex{results: []vectorstore.SearchResult{
		{EntryID: "late", Score: 0.5, Ordinal: 7},
		{EntryID: "early", Score: 0.5, Ordinal: 3},
	}}

	r := New(embedder, idx)
	result, err := r.Retrieve(context.Background(), "zzz", 2)
	if err != nil {
		t.Fatalf("Retrieve() unexpected error: %v", err)
	}
	if result.Results[0].EntryID != "early" {
		t.Errorf("tie-break picked %s, want early", result.Results[0].EntryID)
	}
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("embedding service down"))

	r := New(embedder, &fakeIndex{})
	if _, err := r.Retrieve(context.Background(), "question", 4); err == nil {
		t.Error("Retrieve() expected error when embedding fails")
	}
}

func TestRetrieve_SearchFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	embedder := mocks.NewMockEmbedder(ctrl)
	embedder.EXPECT().EmbedTexts(gomock.Any(), gomock.Any()).
		Return([][]float32{{1, 0, 0}}, nil)

	r := New(embedder, &fakeIndex{err: errors.New("store unavailable")})
	if _, err := r.Retrieve(context.Background(), "question", 4); err == nil {
		t.Error("Retrieve() expected error when search fails")
	}
}

func TestRetrievalResult_Locators(t *testing.T) {
	rr := RetrievalResult{Results: []Result{
		{Locator: "Article 5"},
		{Locator: "Article 9"},
		{Locator: "Article 5"},
		{Locator: "Annex III"},
	}}

	got := rr.Locators()
	want := []string{"Article 5", "Article 9", "Annex III"}
	if len(got) != len(want) {
		t.Fatalf("Locators() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("locator %d = %q, want %q", i, got[i], want[i])
		}
	}
}
