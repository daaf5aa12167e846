package bm25

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Engine is the query-facing BM25 search surface: tokenize, fetch
// candidate postings, score, filter, order, truncate, snippet.
type Engine struct {
	store *Store
}

// NewEngine wraps a Store with scoring and ranking.
func NewEngine(store *Store) *Engine {
	return &Engine{store: store}
}

// Query controls filtering and truncation for one search call.
type Query struct {
	Text       string
	FileGlob   string
	PathPrefix string
	TopK       int
	MaxHits    int
}

// Hit is one ranked search result. It carries no snippet; see Snippet.
type Hit struct {
	ChunkID      string
	Path         string
	StartLine    int
	EndLine      int
	Score        float64
	MatchedTerms []string
}

// Search tokenizes q.Text, scores every chunk sharing at least one term,
// applies file_glob/path_prefix filters, orders deterministically (see
// Order), and truncates to top_k (capped by MaxHits).
func (e *Engine) Search(ctx context.Context, q Query) ([]Hit, error) {
	terms := Tokenize(q.Text)
	if len(terms) == 0 {
		return nil, nil
	}

	corpus, err := e.store.CorpusStats(ctx)
	if err != nil {
		return nil, err
	}
	if corpus.TotalDocs == 0 {
		return nil, nil
	}

	docs, err := e.store.DocsMatchingAnyTerm(ctx, terms, q.PathPrefix)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		if q.FileGlob != "" {
			if ok, _ := doublestar.Match(q.FileGlob, doc.Path); !ok {
				continue
			}
		}

		score, matched := Score(doc, terms, corpus)
		if score <= 0 {
			continue
		}

		results = append(results, Result{
			ChunkID:      doc.ChunkID,
			Path:         doc.Path,
			StartLine:    doc.StartLine,
			EndLine:      doc.EndLine,
			Score:        score,
			MatchedTerms: matched,
		})
	}

	Order(results)
	results = Truncate(results, q.TopK, q.MaxHits)

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit(r)
	}
	return hits, nil
}

// Snippet returns up to 3 consecutive lines of text starting at the first
// line that contains a matched term (the lines after it need not match),
// or the first 3 lines of text if none match, bounded by maxBytes.
func Snippet(text string, matchedTerms []string, maxBytes int) string {
	lines := strings.Split(text, "\n")

	matchSet := make(map[string]struct{}, len(matchedTerms))
	for _, t := range matchedTerms {
		matchSet[t] = struct{}{}
	}

	start := 0
	if len(matchSet) > 0 {
		found := false
		for i, line := range lines {
			for _, tok := range Tokenize(line) {
				if _, ok := matchSet[tok]; ok {
					start = i
					found = true
					break
				}
			}
			if found {
				break
			}
		}
	}

	end := start + 3
	if end > len(lines) {
		end = len(lines)
	}

	snippet := strings.Join(lines[start:end], "\n")
	if maxBytes > 0 && len(snippet) > maxBytes {
		snippet = snippet[:maxBytes]
	}
	return snippet
}
