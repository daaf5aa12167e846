package bm25

import (
	"regexp"
	"strings"
)

// tokenRegex splits on runs of non-alphanumeric, non-underscore characters;
// Tokenize then splits each match on underscores.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// Tokenize applies a fixed tokenization rule: lowercase, split on
// non-alphanumeric, underscore treated as a separator (not part of a
// token), drop tokens shorter than 2 characters. No stemming, no
// camelCase splitting — every chunk and every query is tokenized
// identically so scores stay reproducible across runs.
func Tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, segment := range strings.Split(word, "_") {
			lower := strings.ToLower(segment)
			if len(lower) >= 2 {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

// TermFrequencies counts token occurrences in a single document.
func TermFrequencies(tokens []string) map[string]int {
	freq := make(map[string]int, len(tokens))
	for _, t := range tokens {
		freq[t]++
	}
	return freq
}
