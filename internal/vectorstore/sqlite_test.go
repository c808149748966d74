package vectorstore

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "entries.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() unexpected error: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func testEntries() []Entry {
	return []Entry{
		{ID: "e1", Vector: []float32{1, 0, 0}, Locator: "Article 1", SubIndex: 0, Ordinal: 0, Text: "scope"},
		{ID: "e2", Vector: []float32{0, 1, 0}, Locator: "Article 2", SubIndex: 0, Ordinal: 1, Text: "definitions"},
		{ID: "e3", Vector: []float32{0.7071, 0.7071, 0}, Locator: "Article 3", SubIndex: 0, Ordinal: 2, Text: "obligations"},
	}
}

func TestSQLiteStore_ReplaceAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Replace(ctx, testEntries()); err != nil {
		t.Fatalf("Replace() unexpected error: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}

	// Replace swaps the whole entry set.
	if err := store.Replace(ctx, testEntries()[:1]); err != nil {
		t.Fatalf("Replace() unexpected error: %v", err)
	}
	count, err = store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("Count() after replace = %d, want 1", count)
	}
}

func TestSQLiteStore_SearchRanking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Replace(ctx, testEntries()); err != nil {
		t.Fatalf("Replace() unexpected error: %v", err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].EntryID != "e1" {
		t.Errorf("top result = %s, want e1", results[0].EntryID)
	}
	if results[1].EntryID != "e3" {
		t.Errorf("second result = %s, want e3", results[1].EntryID)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not sorted by score: %v then %v", results[0].Score, results[1].Score)
	}
}

func TestSQLiteStore_SearchTieBreakByOrdinal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Two entries with identical vectors: equal scores, ordinal decides.
	entries := []Entry{
		{ID: "late", Vector: []float32{1, 0}, Locator: "Article 9", Ordinal: 5, Text: "b"},
		{ID: "early", Vector: []float32{1, 0}, Locator: "Article 2", Ordinal: 1, Text: "a"},
	}
	if err := store.Replace(ctx, entries); err != nil {
		t.Fatalf("Replace() unexpected error: %v", err)
	}

	results, err := store.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if results[0].EntryID != "early" || results[1].EntryID != "late" {
		t.Errorf("tie-break order = %s, %s; want early, late", results[0].EntryID, results[1].EntryID)
	}
}

func TestSQLiteStore_SearchEmptyIndex(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Search(context.Background(), []float32{1, 0, 0}, 4)
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if results == nil {
		t.Fatal("Search() returned nil, want empty slice")
	}
	if len(results) != 0 {
		t.Errorf("Search() on empty index returned %d results", len(results))
	}
}

func TestSQLiteStore_SearchInvalidK(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Search(context.Background(), []float32{1}, 0); err == nil {
		t.Error("Search() with k=0 expected error")
	}
}

func TestSQLiteStore_ListRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := testEntries()
	if err := store.Replace(ctx, want); err != nil {
		t.Fatalf("Replace() unexpected error: %v", err)
	}

	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() unexpected error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("List() returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Locator != want[i].Locator || got[i].Ordinal != want[i].Ordinal {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
		if len(got[i].Vector) != len(want[i].Vector) {
			t.Fatalf("entry %d vector size = %d, want %d", i, len(got[i].Vector), len(want[i].Vector))
		}
		for j := range want[i].Vector {
			if got[i].Vector[j] != want[i].Vector[j] {
				t.Errorf("entry %d vector[%d] = %v, want %v", i, j, got[i].Vector[j], want[i].Vector[j])
			}
		}
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{name: "identical", a: []float32{1, 0}, b: []float32{1, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
		{name: "size mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVectorEncodingRoundTrip(t *testing.T) {
	vec := []float32{0.1, -2.5, 3.14159, 0}
	got := decodeVector(encodeVector(vec))
	if len(got) != len(vec) {
		t.Fatalf("decoded size = %d, want %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("vector[%d] = %v, want %v", i, got[i], vec[i])
		}
	}
}
