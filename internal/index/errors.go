package index

import (
	"errors"
	"fmt"

	"aiact-rag/internal/provider"
)

// ErrIndexBusy is returned when a build is requested for an index
// location that already has a build in progress. The conflicting call
// fails fast; callers retry once the running build completes.
var ErrIndexBusy = errors.New("index build already in progress")

// ProviderMismatchError reports that the embedding provider configured
// at query time differs from the one recorded in the index manifest at
// build time. The index is unusable with this provider and must be
// rebuilt; silently degrading answer quality is not an option.
type ProviderMismatchError struct {
	Location   string
	Stored     provider.Fingerprint
	Configured provider.Fingerprint
}

func (e *ProviderMismatchError) Error() string {
	return fmt.Sprintf("index %s was built with embedding provider %s, configured provider is %s",
		e.Location, e.Stored, e.Configured)
}
