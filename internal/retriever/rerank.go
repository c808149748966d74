package retriever

import (
	"strings"
	"unicode"
)

// Lexical scoring weights. The vector score lives in [0, 1], so the
// lexical contribution is capped at 0.4: enough to reorder near-ties,
// never enough to outrank a clearly better semantic match. The length
// scale normalizes the match frequency against chunk size, and each
// query token found in a chunk's locator ("article", a number) adds a
// flat bonus on top.
const (
	lexicalLengthScale = float32(10.0)
	maxLexicalScore    = float32(0.4)
	locatorMatchBonus  = float32(0.1)
)

// lexicalStopwords holds common English function words plus legalese
// that appears in nearly every provision of the regulation and would
// otherwise dominate the overlap count.
var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "any": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "in": {},
	"is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "such": {}, "that": {},
	"the": {}, "this": {}, "to": {}, "was": {}, "were": {}, "with": {},

	"accordance": {}, "hereby": {}, "pursuant": {}, "shall": {}, "thereof": {},
	"therein": {}, "whereas": {},
}

// lexicalScore computes a lightweight lexical relevance score for a
// chunk relative to a query. The score is bounded so it only breaks
// near-ties in semantic similarity rather than overriding it; chunks
// whose locator literally contains query keywords get a small bonus.
func lexicalScore(query, chunkText, locator string) float32 {
	queryTokens := filterStopwords(tokenize(query))
	if len(queryTokens) == 0 {
		return 0
	}

	chunkTokens := tokenize(chunkText)
	if len(chunkTokens) == 0 {
		return 0
	}

	chunkFreq := make(map[string]int, len(chunkTokens))
	for _, token := range chunkTokens {
		chunkFreq[token]++
	}

	var rawMatches int
	for _, token := range queryTokens {
		rawMatches += chunkFreq[token]
	}

	score := (float32(rawMatches) / (1 + float32(len(chunkTokens)))) * lexicalLengthScale

	if locator != "" {
		locatorTokens := tokenize(locator)
		if len(locatorTokens) > 0 {
			locatorSet := make(map[string]struct{}, len(locatorTokens))
			for _, token := range locatorTokens {
				locatorSet[token] = struct{}{}
			}
			var locatorMatches int
			for _, token := range queryTokens {
				if _, ok := locatorSet[token]; ok {
					locatorMatches++
				}
			}
			score += float32(locatorMatches) * locatorMatchBonus
		}
	}

	if score > maxLexicalScore {
		return maxLexicalScore
	}
	if score < 0 {
		return 0
	}
	return score
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	tokens := strings.Fields(builder.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
