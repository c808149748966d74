package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// blockTags are elements that end a line of extracted text. Paragraph
// tags additionally force a blank line so paragraph fallback
// segmentation has boundaries to work with.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "section": true, "article": true, "blockquote": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "head": true, "noscript": true,
}

// extractHTMLText renders an HTML document to plain text, one block
// element per line, paragraphs separated by blank lines.
func extractHTMLText(raw []byte) (string, error) {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", &ParseError{Format: FormatHTML, Reason: fmt.Sprintf("failed to parse HTML: %v", err)}
	}

	var builder strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			builder.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			if n.Data == "p" {
				builder.WriteString("\n\n")
			} else {
				builder.WriteString("\n")
			}
		}
	}
	walk(root)

	return builder.String(), nil
}
