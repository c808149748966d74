package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"aiact-rag/internal/document"
)

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    Format
		wantErr bool
	}{
		{name: "pdf", path: "/data/ai_act.pdf", want: FormatPDF},
		{name: "html", path: "regulation.html", want: FormatHTML},
		{name: "htm", path: "regulation.HTM", want: FormatHTML},
		{name: "markdown", path: "notes.md", want: FormatMarkdown},
		{name: "unsupported", path: "scan.docx", wantErr: true},
		{name: "no extension", path: "regulation", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatForPath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("FormatForPath(%q) expected error, got %v", tt.path, got)
				}
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("FormatForPath(%q) error = %v, want ErrUnsupportedFormat", tt.path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FormatForPath(%q) unexpected error: %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("FormatForPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIngest_HTMLArticles(t *testing.T) {
	ing := New()

	html := `<html><body>
<p>Having regard to the Treaty on the Functioning of the European Union.</p>
<p>Article 1</p>
<p>This Regulation lays down harmonised rules on artificial intelligence.</p>
<p>Article 2</p>
<p>This Regulation applies to providers placing AI systems on the market.</p>
<p>ANNEX III</p>
<p>High-risk AI systems referred to in Article 6.</p>
</body></html>`

	result, err := ing.Ingest(context.Background(), []byte(html), FormatHTML, document.Meta{Title: "EU AI Act"})
	if err != nil {
		t.Fatalf("Ingest() unexpected error: %v", err)
	}
	if result.Degraded != nil {
		t.Fatalf("Ingest() degraded unexpectedly: %v", result.Degraded)
	}

	var locators []string
	for _, unit := range result.Units {
		locators = append(locators, unit.Locator)
	}

	wantLocators := []string{"Preamble, paragraph 1", "Article 1", "Article 2", "Annex III"}
	if len(locators) != len(wantLocators) {
		t.Fatalf("Ingest() units = %v, want locators %v", locators, wantLocators)
	}
	for i, want := range wantLocators {
		if locators[i] != want {
			t.Errorf("unit %d locator = %q, want %q", i, locators[i], want)
		}
	}

	// Ordinals must be sequential from 0.
	for i, unit := range result.Units {
		if unit.Ordinal != i {
			t.Errorf("unit %d ordinal = %d, want %d", i, unit.Ordinal, i)
		}
	}
}

func TestIngest_CoverageNoGaps(t *testing.T) {
	ing := New()

	html := `<p>Preamble text here.</p>
<p>Article 1</p>
<p>Scope of the regulation.</p>
<p>Article 2</p>
<p>Definitions used throughout.</p>`

	result, err := ing.Ingest(context.Background(), []byte(html), FormatHTML, document.Meta{})
	if err != nil {
		t.Fatalf("Ingest() unexpected error: %v", err)
	}

	// Every non-whitespace word of the document must appear in exactly
	// the concatenation of the units.
	var joined strings.Builder
	for _, unit := range result.Units {
		joined.WriteString(unit.Text)
		joined.WriteString("\n")
	}
	for _, word := range []string{"Preamble", "Scope", "Definitions", "Article 1", "Article 2"} {
		if !strings.Contains(joined.String(), word) {
			t.Errorf("unit coverage is missing %q", word)
		}
	}
}

func TestIngest_ParagraphFallback(t *testing.T) {
	ing := New()

	html := `<p>First paragraph with no structural headings at all.</p>
<p>Second paragraph, still nothing to anchor on.</p>`

	result, err := ing.Ingest(context.Background(), []byte(html), FormatHTML, document.Meta{})
	if err != nil {
		t.Fatalf("Ingest() unexpected error: %v", err)
	}
	if result.Degraded == nil {
		t.Fatal("Ingest() expected degraded result for heading-free document")
	}
	if len(result.Units) != 2 {
		t.Fatalf("Ingest() units = %d, want 2", len(result.Units))
	}
	if result.Units[0].Locator != "Paragraph 1" || result.Units[1].Locator != "Paragraph 2" {
		t.Errorf("fallback locators = %q, %q", result.Units[0].Locator, result.Units[1].Locator)
	}
}

func TestIngest_EmptyDocument(t *testing.T) {
	ing := New()

	_, err := ing.Ingest(context.Background(), nil, FormatHTML, document.Meta{})
	if err == nil {
		t.Fatal("Ingest() expected error for empty document")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("Ingest() error = %T, want *ParseError", err)
	}
}

func TestIngest_UnknownFormat(t *testing.T) {
	ing := New()

	_, err := ing.Ingest(context.Background(), []byte("text"), Format("docx"), document.Meta{})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Ingest() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestIngest_Markdown(t *testing.T) {
	ing := New()

	md := `Some text before any heading.

# Article 1

Scope of this regulation.

# Article 2

Definitions.`

	result, err := ing.Ingest(context.Background(), []byte(md), FormatMarkdown, document.Meta{})
	if err != nil {
		t.Fatalf("Ingest() unexpected error: %v", err)
	}

	var locators []string
	for _, unit := range result.Units {
		locators = append(locators, unit.Locator)
	}
	want := []string{"Preamble", "Article 1", "Article 2"}
	if len(locators) != len(want) {
		t.Fatalf("Ingest() locators = %v, want %v", locators, want)
	}
	for i := range want {
		if locators[i] != want[i] {
			t.Errorf("locator %d = %q, want %q", i, locators[i], want[i])
		}
	}
}

func TestIngest_SameBytesSameDocumentID(t *testing.T) {
	ing := New()
	raw := []byte("<p>Article 1</p><p>Scope.</p>")

	first, err := ing.Ingest(context.Background(), raw, FormatHTML, document.Meta{})
	if err != nil {
		t.Fatalf("Ingest() unexpected error: %v", err)
	}
	second, err := ing.Ingest(context.Background(), raw, FormatHTML, document.Meta{})
	if err != nil {
		t.Fatalf("Ingest() unexpected error: %v", err)
	}
	if first.Document.ID != second.Document.ID {
		t.Errorf("document IDs differ for identical bytes: %q vs %q", first.Document.ID, second.Document.ID)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "collapses spaces", in: "Article   1\nScope", want: "Article 1\nScope"},
		{name: "keeps paragraph breaks", in: "a\n\n\n\nb", want: "a\n\nb"},
		{name: "windows line endings", in: "a\r\nb", want: "a\nb"},
		{name: "trims", in: "  a  ", want: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeWhitespace(tt.in); got != tt.want {
				t.Errorf("normalizeWhitespace(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
