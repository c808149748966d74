package ingest

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned when the declared document format is
// not one of the recognized formats.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ParseError reports that structural markers (article boundaries) could
// not be located in a document. Ingestion does not abort on a
// ParseError; it degrades to paragraph-level units and records the
// error so callers can surface it for diagnostics.
type ParseError struct {
	Format Format
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s document: %s", e.Format, e.Reason)
}
