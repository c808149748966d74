package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"aiact-rag/internal/chunker"
	"aiact-rag/internal/contextutil"
	"aiact-rag/internal/document"
	"aiact-rag/internal/index"
	"aiact-rag/internal/ingest"
	"aiact-rag/internal/provider"
	"aiact-rag/internal/quiz"
	"aiact-rag/internal/retriever"
	"aiact-rag/internal/synth"
)

// Options configures the pipeline.
type Options struct {
	// IndexRoot is the directory index locations are created under.
	IndexRoot string
	// MaxTokens and OverlapTokens parameterize chunking.
	MaxTokens     int
	OverlapTokens int
	// TopK is the number of chunks retrieved per question.
	TopK int
	// RelevanceFloor is the minimum vector similarity for retrieved
	// evidence to support an answer.
	RelevanceFloor float32
}

// Article is one distinct document section present in the index.
type Article struct {
	Locator string `json:"locator"`
	Chunks  int    `json:"chunks"`
}

// Pipeline wires ingestion, chunking, indexing, retrieval and answer
// synthesis behind one facade. It owns the handle to the currently
// active index; Ask and Quiz read it, IngestDocument and Rebuild swap
// it.
type Pipeline struct {
	ingestor  *ingest.Ingestor
	chunker   *chunker.Chunker
	builder   *index.Builder
	embedder  provider.Embedder
	generator provider.Generator
	open      index.StoreOpener
	quizzer   *quiz.Generator
	opts      Options
	logger    *slog.Logger

	mu     sync.Mutex
	active *activeIndex
}

// activeIndex pairs an index handle with a count of in-flight readers.
// A swap retires the old handle, but its store stays open until the
// last reader that acquired it before the swap releases it; queries
// running during a rebuild finish against the snapshot they started on.
type activeIndex struct {
	handle *index.Handle

	mu      sync.Mutex
	readers int
	retired bool
}

func (a *activeIndex) acquire() {
	a.mu.Lock()
	a.readers++
	a.mu.Unlock()
}

func (a *activeIndex) release() {
	a.mu.Lock()
	a.readers--
	closeNow := a.retired && a.readers == 0
	a.mu.Unlock()
	if closeNow {
		_ = a.handle.Close()
	}
}

func (a *activeIndex) retire() error {
	a.mu.Lock()
	a.retired = true
	closeNow := a.readers == 0
	a.mu.Unlock()
	if closeNow {
		return a.handle.Close()
	}
	return nil
}

// New creates a Pipeline. Chunking options are validated eagerly so a
// misconfigured service fails at startup rather than on first build.
func New(embedder provider.Embedder, generator provider.Generator, open index.StoreOpener, opts Options) (*Pipeline, error) {
	ck, err := chunker.New(chunker.Config{
		MaxTokens:     opts.MaxTokens,
		OverlapTokens: opts.OverlapTokens,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		ingestor:  ingest.New(),
		chunker:   ck,
		builder:   index.NewBuilder(embedder, open),
		embedder:  embedder,
		generator: generator,
		open:      open,
		quizzer:   quiz.New(generator),
		opts:      opts,
		logger:    slog.Default(),
	}, nil
}

// OpenIndex attaches the pipeline to an already built index at
// location, validating its embedding fingerprint.
func (p *Pipeline) OpenIndex(location string) error {
	handle, err := index.Open(location, p.open, p.embedder.Fingerprint())
	if err != nil {
		return err
	}
	p.swapHandle(handle)
	return nil
}

// IngestDocument reads, parses, chunks and indexes the document at
// path, then makes the resulting index the active one. The index
// location is derived from the document content, so re-ingesting an
// unchanged file reuses the existing index.
func (p *Pipeline) IngestDocument(ctx context.Context, path string) (*index.Handle, error) {
	logger := contextutil.LoggerFromContext(ctx)

	chunks, doc, err := p.prepareChunks(ctx, path)
	if err != nil {
		return nil, err
	}

	location := p.locationFor(path, doc.ID)
	handle, err := p.builder.Build(ctx, location, chunks, index.BuildConfig{
		MaxTokens:     p.opts.MaxTokens,
		OverlapTokens: p.opts.OverlapTokens,
		SourcePath:    path,
		DocumentTitle: doc.Meta.Title,
	})
	if err != nil {
		return nil, err
	}

	p.swapHandle(handle)
	logger.InfoContext(ctx, "document indexed",
		"path", path, "location", handle.Location, "entries", handle.Manifest.EntryCount)
	return handle, nil
}

// Rebuild re-ingests the active index's source document from scratch,
// bypassing the idempotency check. It fails when no index is active or
// the manifest does not record a source path.
func (p *Pipeline) Rebuild(ctx context.Context) (*index.Handle, error) {
	logger := contextutil.LoggerFromContext(ctx)

	current, release, err := p.acquireHandle()
	if err != nil {
		return nil, err
	}
	sourcePath := current.Manifest.SourcePath
	release()
	if sourcePath == "" {
		return nil, fmt.Errorf("index manifest records no source path to rebuild from")
	}

	chunks, doc, err := p.prepareChunks(ctx, sourcePath)
	if err != nil {
		return nil, err
	}

	location := p.locationFor(sourcePath, doc.ID)
	handle, err := p.builder.Build(ctx, location, chunks, index.BuildConfig{
		MaxTokens:     p.opts.MaxTokens,
		OverlapTokens: p.opts.OverlapTokens,
		SourcePath:    sourcePath,
		DocumentTitle: doc.Meta.Title,
		Force:         true,
	})
	if err != nil {
		return nil, err
	}

	p.swapHandle(handle)
	logger.InfoContext(ctx, "index rebuilt",
		"location", handle.Location, "entries", handle.Manifest.EntryCount)
	return handle, nil
}

// Ask answers a question from the active index: retrieve, rank,
// synthesize, validate citations.
func (p *Pipeline) Ask(ctx context.Context, question string) (synth.Answer, retriever.RetrievalResult, error) {
	handle, release, err := p.acquireHandle()
	if err != nil {
		return synth.Answer{}, retriever.RetrievalResult{}, err
	}
	defer release()

	ret := retriever.New(p.embedder, handle)
	retrieval, err := ret.Retrieve(ctx, question, p.opts.TopK)
	if err != nil {
		return synth.Answer{}, retriever.RetrievalResult{}, err
	}

	syn := synth.New(p.generator, synth.Options{RelevanceFloor: p.opts.RelevanceFloor})
	answer, err := syn.Answer(ctx, question, retrieval)
	if err != nil {
		return synth.Answer{}, retrieval, err
	}

	return answer, retrieval, nil
}

// Quiz generates up to count multiple-choice questions from randomly
// picked indexed chunks. Chunks whose generation output fails
// validation are skipped, so fewer questions than requested may come
// back.
func (p *Pipeline) Quiz(ctx context.Context, count int) ([]quiz.Question, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if count <= 0 {
		return nil, fmt.Errorf("count must be greater than 0")
	}

	handle, release, err := p.acquireHandle()
	if err != nil {
		return nil, err
	}
	defer release()

	entries, err := handle.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list index entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("index is empty")
	}

	order := rand.Perm(len(entries))
	questions := make([]quiz.Question, 0, count)
	for _, i := range order {
		if len(questions) == count {
			break
		}
		entry := entries[i]
		q, err := p.quizzer.FromChunk(ctx, entry.Locator, entry.Text)
		if err != nil {
			logger.WarnContext(ctx, "skipping chunk after failed question generation",
				"locator", entry.Locator, "error", err)
			continue
		}
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("failed to generate any questions")
	}
	return questions, nil
}

// Articles lists the distinct locators in the active index in document
// order, with their chunk counts.
func (p *Pipeline) Articles(ctx context.Context) ([]Article, error) {
	handle, release, err := p.acquireHandle()
	if err != nil {
		return nil, err
	}
	defer release()

	entries, err := handle.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list index entries: %w", err)
	}

	counts := make(map[string]int, len(entries))
	var articles []Article
	for _, entry := range entries {
		if _, seen := counts[entry.Locator]; !seen {
			articles = append(articles, Article{Locator: entry.Locator})
		}
		counts[entry.Locator]++
	}
	for i := range articles {
		articles[i].Chunks = counts[articles[i].Locator]
	}
	if articles == nil {
		articles = []Article{}
	}
	return articles, nil
}

// Status describes the active index.
type Status struct {
	Ready         bool   `json:"ready"`
	Location      string `json:"location,omitempty"`
	DocumentTitle string `json:"document_title,omitempty"`
	Entries       int    `json:"entries"`
	Fingerprint   string `json:"fingerprint,omitempty"`
}

// Status reports whether an index is active and what it holds.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active == nil {
		return Status{}
	}
	handle := active.handle
	status := Status{
		Ready:         handle.Manifest.EntryCount > 0,
		Location:      handle.Location,
		DocumentTitle: handle.Manifest.DocumentTitle,
		Entries:       handle.Manifest.EntryCount,
	}
	if handle.Manifest.Fingerprint != (provider.Fingerprint{}) {
		status.Fingerprint = handle.Manifest.Fingerprint.String()
	}
	return status
}

// Close retires the active index handle. The underlying store closes
// once the last in-flight reader finishes.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	active := p.active
	p.active = nil
	p.mu.Unlock()

	if active == nil {
		return nil
	}
	return active.retire()
}

// prepareChunks runs ingestion and chunking for the document at path.
func (p *Pipeline) prepareChunks(ctx context.Context, path string) ([]document.Chunk, document.SourceDocument, error) {
	logger := contextutil.LoggerFromContext(ctx)

	format, err := ingest.FormatForPath(path)
	if err != nil {
		return nil, document.SourceDocument{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, document.SourceDocument{}, fmt.Errorf("failed to read document: %w", err)
	}

	result, err := p.ingestor.Ingest(ctx, raw, format, document.Meta{
		Title:      titleFor(path),
		SourcePath: path,
	})
	if err != nil {
		return nil, document.SourceDocument{}, err
	}
	if result.Degraded != nil {
		logger.WarnContext(ctx, "document ingested without structural boundaries",
			"path", path, "reason", result.Degraded.Reason)
	}

	chunks := p.chunker.Chunk(result.Units)
	if len(chunks) == 0 {
		return nil, document.SourceDocument{}, fmt.Errorf("document produced no chunks")
	}

	return chunks, result.Document, nil
}

// locationFor derives the index location from the document path and
// content, so each document version gets its own index directory.
func (p *Pipeline) locationFor(path, contentID string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	short := contentID
	if len(short) > 12 {
		short = short[:12]
	}
	return filepath.Join(p.opts.IndexRoot, fmt.Sprintf("%s-%s", base, short))
}

// titleFor turns a file name into a readable document title.
func titleFor(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.ReplaceAll(base, "-", " ")
	return strings.TrimSpace(base)
}

func (p *Pipeline) swapHandle(handle *index.Handle) {
	p.mu.Lock()
	old := p.active
	p.active = &activeIndex{handle: handle}
	p.mu.Unlock()
	if old != nil && old.handle != handle {
		_ = old.retire()
	}
}

// acquireHandle pins the active index for one read operation. The
// returned release must be called when the read is done; it keeps the
// handle's store open across a concurrent swap.
func (p *Pipeline) acquireHandle() (*index.Handle, func(), error) {
	p.mu.Lock()
	active := p.active
	if active != nil {
		active.acquire()
	}
	p.mu.Unlock()

	if active == nil {
		return nil, nil, fmt.Errorf("no index is active; ingest a document first")
	}
	return active.handle, active.release, nil
}
