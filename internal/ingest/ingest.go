package ingest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"aiact-rag/internal/contextutil"
	"aiact-rag/internal/document"
)

// Format identifies the declared format of a source document.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// FormatForPath maps a file extension to a Format.
// Returns ErrUnsupportedFormat for unrecognized extensions.
func FormatForPath(path string) (Format, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return FormatPDF, nil
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return FormatHTML, nil
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".markdown"):
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Ingestor parses raw regulation documents into ordered TextUnits.
type Ingestor struct{}

// New creates a new Ingestor.
func New() *Ingestor {
	return &Ingestor{}
}

// Result is the output of one ingestion. Degraded is non-nil when
// article boundaries could not be found and the document fell back to
// paragraph-level units.
type Result struct {
	Document document.SourceDocument
	Units    []document.TextUnit
	Degraded *ParseError
}

// Ingest parses raw document bytes in the declared format into an
// ordered sequence of TextUnits covering the whole document with no
// gaps and no overlap. Unknown formats fail with ErrUnsupportedFormat.
// When article boundaries cannot be located the document is segmented
// into paragraph units instead and Result.Degraded records the reason.
func (ing *Ingestor) Ingest(ctx context.Context, raw []byte, format Format, meta document.Meta) (Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(raw) == 0 {
		return Result{}, &ParseError{Format: format, Reason: "empty document"}
	}

	var text string
	var err error
	switch format {
	case FormatPDF:
		text, err = extractPDFText(raw)
	case FormatHTML:
		text, err = extractHTMLText(raw)
	case FormatMarkdown:
		return ingestMarkdown(ctx, raw, meta)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Result{}, err
	}

	text = normalizeWhitespace(text)
	if text == "" {
		return Result{}, &ParseError{Format: format, Reason: "no text content"}
	}

	doc := document.SourceDocument{
		ID:   contentID(raw),
		Meta: meta,
		Text: text,
	}

	units, degraded := segmentUnits(text, format)
	if degraded != nil {
		logger.WarnContext(ctx, "article boundaries not found, using paragraph units",
			"format", string(format), "reason", degraded.Reason, "units", len(units))
	} else {
		logger.InfoContext(ctx, "document segmented", "format", string(format), "units", len(units))
	}

	return Result{Document: doc, Units: units, Degraded: degraded}, nil
}

// articleRe matches structural headings of the regulation text:
// "Article 5", "Article 6a" at the start of a line.
var articleRe = regexp.MustCompile(`(?m)^\s*Article\s+(\d+[a-z]?)\b`)

// annexRe matches annex headings such as "ANNEX III".
var annexRe = regexp.MustCompile(`(?m)^\s*ANNEX\s+([IVXLC]+)\b`)

type boundary struct {
	offset  int
	locator string
}

// segmentUnits splits extracted text into article/annex units. When no
// structural markers are present it degrades to paragraph units and
// reports the ParseError alongside them.
func segmentUnits(text string, format Format) ([]document.TextUnit, *ParseError) {
	var bounds []boundary
	for _, m := range articleRe.FindAllStringSubmatchIndex(text, -1) {
		bounds = append(bounds, boundary{
			offset:  m[0],
			locator: "Article " + text[m[2]:m[3]],
		})
	}
	for _, m := range annexRe.FindAllStringSubmatchIndex(text, -1) {
		bounds = append(bounds, boundary{
			offset:  m[0],
			locator: "Annex " + text[m[2]:m[3]],
		})
	}

	if len(bounds) == 0 {
		perr := &ParseError{Format: format, Reason: "no article or annex headings found"}
		return paragraphUnits(text, "Paragraph"), perr
	}

	sortBoundaries(bounds)

	var units []document.TextUnit
	ordinal := 0

	// Text before the first structural marker is the preamble; keep it
	// as paragraph units so the whole document stays covered.
	if lead := strings.TrimSpace(text[:bounds[0].offset]); lead != "" {
		for _, u := range paragraphUnits(lead, "Preamble, paragraph") {
			u.Ordinal = ordinal
			units = append(units, u)
			ordinal++
		}
	}

	for i, b := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1].offset
		}
		span := strings.TrimSpace(text[b.offset:end])
		if span == "" {
			continue
		}
		units = append(units, document.TextUnit{
			Locator: b.locator,
			Ordinal: ordinal,
			Text:    span,
		})
		ordinal++
	}

	return units, nil
}

// paragraphUnits is the coarse fallback segmentation: one unit per
// blank-line-separated paragraph, locators numbered from 1.
func paragraphUnits(text, locatorPrefix string) []document.TextUnit {
	paras := strings.Split(text, "\n\n")
	units := make([]document.TextUnit, 0, len(paras))
	n := 0
	for _, para := range paras {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n++
		units = append(units, document.TextUnit{
			Locator: fmt.Sprintf("%s %d", locatorPrefix, n),
			Ordinal: n - 1,
			Text:    para,
		})
	}
	return units
}

func sortBoundaries(bounds []boundary) {
	for i := 1; i < len(bounds); i++ {
		for j := i; j > 0 && bounds[j].offset < bounds[j-1].offset; j-- {
			bounds[j], bounds[j-1] = bounds[j-1], bounds[j]
		}
	}
}

// contentID derives a stable document identifier from the raw bytes,
// so the same document version always maps to the same index location.
func contentID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%x", sum)
}

// normalizeWhitespace collapses runs of spaces and tabs while keeping
// paragraph breaks, so boundary regexes see one heading per line.
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.Join(lines, "\n")
	multiBlank := regexp.MustCompile(`\n{3,}`)
	text = multiBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
