package bundler

import (
	"regexp"
	"strings"
)

// maxKeywords is the fixed cap on extracted keywords.
const maxKeywords = 12

// minKeywordLength drops tokens shorter than this many characters.
const minKeywordLength = 3

var keywordSplit = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// ExtractKeywords lowercases prompt, splits on non-alphanumeric runs, drops
// stop-words and short tokens, and returns up to maxKeywords unique tokens
// in first-seen order.
func ExtractKeywords(prompt string) []string {
	lower := strings.ToLower(prompt)
	tokens := keywordSplit.Split(lower, -1)

	seen := make(map[string]struct{}, maxKeywords)
	var keywords []string

	for _, tok := range tokens {
		if len(keywords) >= maxKeywords {
			break
		}
		if len(tok) < minKeywordLength {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}

	return keywords
}
