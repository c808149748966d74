package document

// Meta holds document-level metadata captured once at ingestion.
type Meta struct {
	Title        string
	Version      string
	Jurisdiction string
	SourcePath   string
}

// SourceDocument is an ingested regulation document. It is created once
// at ingestion time and never mutated afterwards.
type SourceDocument struct {
	ID   string
	Meta Meta
	Text string
}

// TextUnit is a logical subdivision of a source document, typically one
// article or one preamble paragraph. The locator is the stable
// structural address used for citations (e.g. "Article 5").
type TextUnit struct {
	// Locator is the structural address of this unit within the document.
	Locator string
	// Ordinal is the position of this unit in document order (starts at 0).
	Ordinal int
	// Text is the raw text span of the unit.
	Text string
}

// Chunk is a token-bounded slice of one TextUnit, sized for embedding.
// Two chunks from the same unit are distinguished by SubIndex.
type Chunk struct {
	// Locator is inherited from the parent TextUnit.
	Locator string
	// SubIndex distinguishes chunks within the same unit (starts at 0).
	SubIndex int
	// Ordinal is the position of this chunk across the whole document.
	// It is the deterministic tie-break key for equal similarity scores.
	Ordinal int
	// Text is the chunk text.
	Text string
	// TokenCount is the number of tokens in Text.
	TokenCount int
}
