package synth

import (
	"regexp"
	"strings"
	"unicode"
)

// citationMarkerRe matches bracketed citation markers emitted by the
// generation step, e.g. "[Article 5]" or "[Annex III]".
var citationMarkerRe = regexp.MustCompile(`\[([^\[\]]{1,80})\]`)

// splitSentences splits generated text into sentences. Sentence
// boundaries are terminal punctuation followed by whitespace, plus
// line breaks; good enough to attribute citation markers to the
// sentence they appear in.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		boundary := false
		switch r {
		case '.', '!', '?':
			boundary = i+1 >= len(runes) || unicode.IsSpace(runes[i+1])
		case '\n':
			boundary = true
		}

		if boundary {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// normalizeLocator folds a cited locator for comparison: lowercase,
// punctuation stripped, whitespace collapsed.
func normalizeLocator(s string) string {
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}

// matchLocator resolves a cited locator against the locators actually
// present in the retrieval. Exact normalized match wins; otherwise a
// containment match either way (the model may cite "Article 5" for
// locator "Article 5a" — containment requires whole-token prefixes, so
// that pair does not match). Returns the canonical locator.
func matchLocator(cited string, locators []string) (string, bool) {
	normCited := normalizeLocator(cited)
	if normCited == "" {
		return "", false
	}

	for _, locator := range locators {
		if normalizeLocator(locator) == normCited {
			return locator, true
		}
	}

	citedTokens := strings.Fields(normCited)
	for _, locator := range locators {
		locatorTokens := strings.Fields(normalizeLocator(locator))
		if containsTokens(locatorTokens, citedTokens) || containsTokens(citedTokens, locatorTokens) {
			return locator, true
		}
	}

	return "", false
}

// containsTokens reports whether haystack contains needle as a
// contiguous token subsequence.
func containsTokens(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for start := 0; start+len(needle) <= len(haystack); start++ {
		match := true
		for i := range needle {
			if haystack[start+i] != needle[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
