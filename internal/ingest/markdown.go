package ingest

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"aiact-rag/internal/contextutil"
	"aiact-rag/internal/document"
)

var markdownParser = goldmark.New(
	goldmark.WithExtensions(extension.Table),
)

// ingestMarkdown segments a markdown edition of the regulation into one
// unit per heading section. Heading text becomes the unit locator;
// documents without headings degrade to article-regex or paragraph
// segmentation over the rendered plain text.
func ingestMarkdown(ctx context.Context, raw []byte, meta document.Meta) (Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	reader := text.NewReader(raw)
	root := markdownParser.Parser().Parse(reader)

	type section struct {
		locator string
		text    strings.Builder
	}

	var sections []*section
	current := (*section)(nil)

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			heading := nodeText(node, raw)
			current = &section{locator: heading}
			current.text.WriteString(heading)
			current.text.WriteString("\n")
			sections = append(sections, current)
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if current == nil {
				// Content before the first heading still belongs to a unit.
				current = &section{locator: "Preamble"}
				sections = append(sections, current)
			}
			current.text.Write(node.Segment.Value(raw))
		case *ast.String:
			if current == nil {
				current = &section{locator: "Preamble"}
				sections = append(sections, current)
			}
			current.text.Write(node.Value)
		case *ast.Paragraph, *ast.List, *ast.ListItem:
			if current != nil && current.text.Len() > 0 {
				current.text.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})

	doc := document.SourceDocument{
		ID:   contentID(raw),
		Meta: meta,
	}

	if len(sections) == 0 {
		// No headings: fall back to the shared text segmentation.
		plain := normalizeWhitespace(string(raw))
		if plain == "" {
			return Result{}, &ParseError{Format: FormatMarkdown, Reason: "no text content"}
		}
		doc.Text = plain
		units, degraded := segmentUnits(plain, FormatMarkdown)
		if degraded != nil {
			logger.WarnContext(ctx, "markdown without headings or article markers, using paragraph units",
				"units", len(units))
		}
		return Result{Document: doc, Units: units, Degraded: degraded}, nil
	}

	var units []document.TextUnit
	var docText strings.Builder
	ordinal := 0
	for _, sec := range sections {
		body := normalizeWhitespace(sec.text.String())
		if body == "" {
			continue
		}
		units = append(units, document.TextUnit{
			Locator: sec.locator,
			Ordinal: ordinal,
			Text:    body,
		})
		docText.WriteString(body)
		docText.WriteString("\n\n")
		ordinal++
	}
	if len(units) == 0 {
		return Result{}, &ParseError{Format: FormatMarkdown, Reason: "no text content"}
	}
	doc.Text = strings.TrimSpace(docText.String())

	logger.InfoContext(ctx, "document segmented", "format", string(FormatMarkdown), "units", len(units))
	return Result{Document: doc, Units: units}, nil
}

// nodeText collects the text content of a node and its children.
func nodeText(n ast.Node, source []byte) string {
	var builder strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			builder.Write(v.Segment.Value(source))
		case *ast.String:
			builder.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(builder.String())
}
