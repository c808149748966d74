package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"aiact-rag/internal/provider"
)

const manifestFile = "manifest.json"

// Manifest records what an index was built from. It is the commit
// marker of a build: it is written last, atomically, so a manifest on
// disk always describes fully persisted entries.
type Manifest struct {
	// ContentHash identifies the chunk set the index was built from.
	ContentHash string `json:"content_hash"`
	// Fingerprint is the embedding provider used at build time.
	Fingerprint provider.Fingerprint `json:"embedding_fingerprint"`
	// MaxTokens and OverlapTokens are the chunking parameters.
	MaxTokens     int `json:"max_tokens"`
	OverlapTokens int `json:"overlap_tokens"`
	// EntryCount is the number of persisted entries.
	EntryCount int `json:"entry_count"`
	// SourcePath is the document the index was built from.
	SourcePath string `json:"source_path"`
	// DocumentTitle is carried for display purposes.
	DocumentTitle string    `json:"document_title"`
	BuiltAt       time.Time `json:"built_at"`
}

// ReadManifest loads the manifest at location. Returns os.ErrNotExist
// (wrapped) when no manifest has been committed yet.
func ReadManifest(location string) (Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(location, manifestFile))
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, nil
}

// writeManifest commits the manifest via write-to-temp-then-rename so
// readers never observe a partially written manifest.
func writeManifest(location string, m Manifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	tmp := filepath.Join(location, manifestFile+".tmp")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(location, manifestFile)); err != nil {
		return fmt.Errorf("failed to commit manifest: %w", err)
	}
	return nil
}
