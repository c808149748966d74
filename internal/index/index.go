package index

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"aiact-rag/internal/contextutil"
	"aiact-rag/internal/document"
	"aiact-rag/internal/provider"
	"aiact-rag/internal/vectorstore"
)

const (
	lockFile       = ".build.lock"
	lockStaleAfter = 15 * time.Minute
	embedBatchSize = 32
	embedAttempts  = 3
	embedBackoff   = 500 * time.Millisecond
)

// StoreOpener opens the vector store backend for an index location.
type StoreOpener func(location string) (vectorstore.VectorStore, error)

// BuildConfig holds the parameters of one index build.
type BuildConfig struct {
	MaxTokens     int
	OverlapTokens int
	SourcePath    string
	DocumentTitle string
	// Force rebuilds even when the existing index matches the chunk
	// set, used by explicit rebuild requests.
	Force bool
}

// Handle is a read view over a fully committed index.
type Handle struct {
	Location string
	Manifest Manifest
	store    vectorstore.VectorStore
}

// Search returns the k nearest entries for a query vector. Searching
// an index with no entries returns an empty result, not an error.
func (h *Handle) Search(ctx context.Context, query []float32, k int) ([]vectorstore.SearchResult, error) {
	return h.store.Search(ctx, query, k)
}

// Entries returns all index entries in document order.
func (h *Handle) Entries(ctx context.Context) ([]vectorstore.Entry, error) {
	return h.store.List(ctx)
}

// Count returns the number of persisted entries.
func (h *Handle) Count(ctx context.Context) (int, error) {
	return h.store.Count(ctx)
}

// Close releases the underlying store connection.
func (h *Handle) Close() error {
	return h.store.Close()
}

// buildLocks serializes builds per index location within this process.
// The on-disk lockfile covers other processes.
var (
	buildLocksMu sync.Mutex
	buildLocks   = make(map[string]*sync.Mutex)
)

func lockFor(location string) *sync.Mutex {
	buildLocksMu.Lock()
	defer buildLocksMu.Unlock()
	mu, ok := buildLocks[location]
	if !ok {
		mu = &sync.Mutex{}
		buildLocks[location] = mu
	}
	return mu
}

// Builder builds indexes: it embeds chunks through the configured
// provider and persists entries plus a manifest at an index location.
type Builder struct {
	embedder provider.Embedder
	open     StoreOpener
	logger   *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(embedder provider.Embedder, open StoreOpener) *Builder {
	return &Builder{
		embedder: embedder,
		open:     open,
		logger:   slog.Default(),
	}
}

// Build creates or refreshes the index at location from the given
// chunk set.
//
// Build is idempotent per content hash of the chunk set: rebuilding
// with identical chunks, chunking config and embedding fingerprint is
// a no-op that returns a handle to the existing index. Only one build
// may run per location at a time; a conflicting call fails with
// ErrIndexBusy. Entries are persisted wholesale and the manifest is
// committed last, so readers only ever observe fully built indexes.
func (b *Builder) Build(ctx context.Context, location string, chunks []document.Chunk, cfg BuildConfig) (*Handle, error) {
	logger := contextutil.LoggerFromContext(ctx)

	absLocation, err := filepath.Abs(location)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve index location: %w", err)
	}
	if err := os.MkdirAll(absLocation, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index location: %w", err)
	}

	mu := lockFor(absLocation)
	if !mu.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrIndexBusy, absLocation)
	}
	defer mu.Unlock()

	lockPath := filepath.Join(absLocation, lockFile)
	lock, err := acquireLockFile(lockPath)
	if err != nil {
		if errors.Is(err, ErrIndexBusy) {
			return nil, fmt.Errorf("%w: %s", ErrIndexBusy, absLocation)
		}
		return nil, err
	}
	defer func() {
		_ = lock.Close()
		_ = os.Remove(lockPath)
	}()

	contentHash := hashChunks(chunks)
	fingerprint := b.embedder.Fingerprint()

	if !cfg.Force {
		if existing, err := ReadManifest(absLocation); err == nil &&
			existing.ContentHash == contentHash &&
			existing.Fingerprint == fingerprint &&
			existing.MaxTokens == cfg.MaxTokens &&
			existing.OverlapTokens == cfg.OverlapTokens {
			logger.InfoContext(ctx, "index up to date, skipping build",
				"location", absLocation, "entries", existing.EntryCount)
			store, err := b.open(absLocation)
			if err != nil {
				return nil, err
			}
			return &Handle{Location: absLocation, Manifest: existing, store: store}, nil
		}
	}

	entries, err := b.embedChunks(ctx, contentHash, chunks)
	if err != nil {
		return nil, err
	}

	store, err := b.open(absLocation)
	if err != nil {
		return nil, err
	}
	if err := store.Replace(ctx, entries); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to persist entries: %w", err)
	}

	manifest := Manifest{
		ContentHash:   contentHash,
		Fingerprint:   fingerprint,
		MaxTokens:     cfg.MaxTokens,
		OverlapTokens: cfg.OverlapTokens,
		EntryCount:    len(entries),
		SourcePath:    cfg.SourcePath,
		DocumentTitle: cfg.DocumentTitle,
		BuiltAt:       time.Now().UTC(),
	}
	if err := writeManifest(absLocation, manifest); err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.InfoContext(ctx, "index built",
		"location", absLocation, "entries", len(entries), "fingerprint", fingerprint.String())

	return &Handle{Location: absLocation, Manifest: manifest, store: store}, nil
}

// acquireLockFile creates the on-disk build lock. A lock file left
// behind by a crashed build is reclaimed once it is older than
// lockStaleAfter; a running build finishes well inside that window.
func acquireLockFile(lockPath string) (*os.File, error) {
	for attempt := 0; ; attempt++ {
		lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(lock, "pid %d at %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			return lock, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire build lock: %w", err)
		}
		if attempt > 0 {
			return nil, ErrIndexBusy
		}
		info, statErr := os.Stat(lockPath)
		if statErr != nil || time.Since(info.ModTime()) < lockStaleAfter {
			return nil, ErrIndexBusy
		}
		_ = os.Remove(lockPath)
	}
}

// embedChunks embeds all chunks in batches with bounded retries and
// assigns each entry a deterministic ID derived from the content hash
// and the chunk's locator, so rebuilding identical content yields an
// identical index.
func (b *Builder) embedChunks(ctx context.Context, contentHash string, chunks []document.Chunk) ([]vectorstore.Entry, error) {
	entries := make([]vectorstore.Entry, 0, len(chunks))

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		var vectors [][]float32
		err := provider.Retry(ctx, embedAttempts, embedBackoff, func() error {
			var embedErr error
			vectors, embedErr = b.embedder.EmbedTexts(ctx, texts)
			return embedErr
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(vectors))
		}

		for i, chunk := range batch {
			entries = append(entries, vectorstore.Entry{
				ID:       entryID(contentHash, chunk),
				Vector:   vectors[i],
				Locator:  chunk.Locator,
				SubIndex: chunk.SubIndex,
				Ordinal:  chunk.Ordinal,
				Text:     chunk.Text,
			})
		}
	}

	return entries, nil
}

// Open opens the committed index at location and validates that its
// embedding fingerprint matches the configured provider. A missing
// manifest yields a handle over an empty index.
func Open(location string, open StoreOpener, fingerprint provider.Fingerprint) (*Handle, error) {
	absLocation, err := filepath.Abs(location)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve index location: %w", err)
	}
	if err := os.MkdirAll(absLocation, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index location: %w", err)
	}

	manifest, err := ReadManifest(absLocation)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		manifest = Manifest{}
	} else if manifest.Fingerprint != fingerprint {
		return nil, &ProviderMismatchError{
			Location:   absLocation,
			Stored:     manifest.Fingerprint,
			Configured: fingerprint,
		}
	}

	store, err := open(absLocation)
	if err != nil {
		return nil, err
	}

	return &Handle{Location: absLocation, Manifest: manifest, store: store}, nil
}

// hashChunks hashes the chunk set content in document order. Two
// chunk sets with identical locators and texts hash identically.
func hashChunks(chunks []document.Chunk) string {
	h := sha256.New()
	for _, chunk := range chunks {
		fmt.Fprintf(h, "%s\x00%d\x00%s\n", chunk.Locator, chunk.SubIndex, chunk.Text)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// entryID derives a stable UUID for a chunk within a given content
// hash, keeping rebuilds byte-for-byte reproducible.
func entryID(contentHash string, chunk document.Chunk) string {
	name := fmt.Sprintf("%s/%s#%d", contentHash, chunk.Locator, chunk.SubIndex)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
