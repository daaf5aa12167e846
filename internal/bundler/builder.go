// Package bundler assembles deterministic, cited context bundles for a
// prompt: keyword extraction, multi-query BM25 retrieval, symbol
// alignment against adapter outlines, signal-based ranking, budget
// enforcement, and an explanation trail for every selection and skip.
package bundler

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/repomcp/repomcpd/internal/adapters"
	"github.com/repomcp/repomcpd/internal/bm25"
	"github.com/repomcp/repomcpd/internal/references"
	"github.com/repomcp/repomcpd/internal/repoconfig"
	"github.com/repomcp/repomcpd/internal/sandbox"
)

// rangeSizeSoftThreshold is the line count above which range_size_penalty
// starts accruing.
const rangeSizeSoftThreshold = 80

// rangeSizePenaltyRate is the per-line-over-threshold penalty weight.
const rangeSizePenaltyRate = 0.01

// Builder wires the BM25 Engine, Adapter Registry, and Reference Engine
// into a single candidate-gathering, scoring, and budget-trimming pipeline.
type Builder struct {
	search     *bm25.Engine
	registry   *adapters.Registry
	references *references.Engine
	box        *sandbox.Sandbox
}

// New creates a Builder from its already-constructed collaborators.
func New(search *bm25.Engine, registry *adapters.Registry, refEngine *references.Engine, box *sandbox.Sandbox) *Builder {
	return &Builder{search: search, registry: registry, references: refEngine, box: box}
}

// outlineCache memoizes per-file symbol outlines and raw content within one
// Build call; adapters are pure functions of (path, text) so this is safe.
type outlineCache struct {
	box      *sandbox.Sandbox
	registry *adapters.Registry
	content  map[string][]byte
	symbols  map[string][]adapters.Symbol
}

func newOutlineCache(box *sandbox.Sandbox, registry *adapters.Registry) *outlineCache {
	return &outlineCache{box: box, registry: registry, content: map[string][]byte{}, symbols: map[string][]adapters.Symbol{}}
}

func (c *outlineCache) textFor(path string) ([]byte, error) {
	if text, ok := c.content[path]; ok {
		return text, nil
	}
	abs, blocked := c.box.Resolve(path)
	if blocked != nil {
		return nil, blocked
	}
	text, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	c.content[path] = text
	return text, nil
}

func (c *outlineCache) symbolsFor(path string) []adapters.Symbol {
	if s, ok := c.symbols[path]; ok {
		return s
	}
	text, err := c.textFor(path)
	if err != nil {
		c.symbols[path] = nil
		return nil
	}
	adapter := c.registry.For(path)
	if adapter == nil {
		c.symbols[path] = nil
		return nil
	}
	symbols := adapter.Outline(path, text)
	c.symbols[path] = symbols
	return symbols
}

// Build assembles a Bundle for prompt under budget: extracts keywords,
// gathers candidate ranges from search, outline, and reference signals,
// scores and orders them, then trims to fit.
func (b *Builder) Build(ctx context.Context, cfg *repoconfig.Config, prompt string, budget Budget, includeTests bool) (*Bundle, error) {
	keywords := ExtractKeywords(prompt)
	cache := newOutlineCache(b.box, b.registry)

	cands, err := b.retrieve(ctx, cfg, prompt, keywords, includeTests)
	if err != nil {
		return nil, err
	}

	b.alignToSymbols(cands, cache, cfg.Limits.MaxOpenLines)
	b.scoreAll(ctx, cfg, cands, keywords, cache)

	orderCandidates(cands)

	selections, skipped, err := b.enforceBudget(cands, cache, budget)
	if err != nil {
		return nil, err
	}

	totals := Totals{}
	citations := make([]Citation, 0, len(selections))
	filesSeen := make(map[string]bool)
	for _, s := range selections {
		if !filesSeen[s.Path] {
			filesSeen[s.Path] = true
			totals.Files++
		}
		totals.Lines += s.EndLine - s.StartLine + 1
		totals.Bytes += len(s.Text)
		citations = append(citations, Citation{Path: s.Path, StartLine: s.StartLine, EndLine: s.EndLine})
	}

	if len(skipped) > maxSkippedReported {
		skipped = skipped[:maxSkippedReported]
	}

	return &Bundle{
		BundleID:          bundleID(selections),
		PromptFingerprint: promptFingerprint(prompt, keywords, budget, includeTests),
		Strategy:          "hybrid",
		Budget:            budget,
		Totals:            totals,
		Selections:        selections,
		Citations:         citations,
		Audit: Audit{
			SelectionDebug: SelectionDebug{
				WhyNotSelectedSummary: WhyNotSelectedSummary{TopSkipped: skipped},
			},
		},
	}, nil
}

// retrieve issues the multi-query BM25 retrieval: one query for the full
// prompt, one per extracted keyword, unioned by (path, start_line,
// end_line), tracking the highest-scoring source query and the union of
// matched terms.
func (b *Builder) retrieve(ctx context.Context, cfg *repoconfig.Config, prompt string, keywords []string, includeTests bool) ([]*candidate, error) {
	queries := append([]string{prompt}, keywords...)

	byKey := make(map[string]*candidate)
	var order []string

	for _, q := range queries {
		hits, err := b.search.Search(ctx, bm25.Query{
			Text:    q,
			MaxHits: cfg.Limits.MaxSearchHits,
		})
		if err != nil {
			return nil, fmt.Errorf("bundler retrieval query %q: %w", q, err)
		}

		for _, hit := range hits {
			if !includeTests && matchesTestGlob(hit.Path, cfg.Paths.TestGlobs) {
				continue
			}

			key := fmt.Sprintf("%s:%d:%d", hit.Path, hit.StartLine, hit.EndLine)
			c, ok := byKey[key]
			if !ok {
				c = &candidate{Path: hit.Path, StartLine: hit.StartLine, EndLine: hit.EndLine, SourceQuery: q}
				byKey[key] = c
				order = append(order, key)
			}
			if hit.Score > c.Components.SearchScore {
				c.Components.SearchScore = hit.Score
				c.SourceQuery = q
			}
			c.MatchedTerms = unionTerms(c.MatchedTerms, hit.MatchedTerms)
		}
	}

	cands := make([]*candidate, 0, len(order))
	for _, key := range order {
		c := byKey[key]
		c.Components.MatchedTermsCount = len(c.MatchedTerms)
		cands = append(cands, c)
	}
	return cands, nil
}

func matchesTestGlob(path string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, path); ok {
			return true
		}
	}
	return false
}

func unionTerms(existing, add []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		seen[t] = struct{}{}
	}
	out := append([]string{}, existing...)
	for _, t := range add {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// alignToSymbols replaces each candidate's chunk range with the smallest
// enclosing declaration range when one exists and fits within
// maxOpenLines.
func (b *Builder) alignToSymbols(cands []*candidate, cache *outlineCache, maxOpenLines int) {
	for _, c := range cands {
		symbols := cache.symbolsFor(c.Path)
		if len(symbols) == 0 {
			continue
		}
		enclosing := enclosingSymbol(symbols, c.StartLine, c.EndLine)
		if enclosing == nil {
			continue
		}
		length := enclosing.EndLine - enclosing.StartLine + 1
		if length <= maxOpenLines {
			c.StartLine = enclosing.StartLine
			c.EndLine = enclosing.EndLine
		}
	}
}

// scoreAll fills in the remaining score vector components: definition
// match, reference count, path-name relevance, definition distance, and
// range-size penalty.
func (b *Builder) scoreAll(ctx context.Context, cfg *repoconfig.Config, cands []*candidate, keywords []string, cache *outlineCache) {
	keywordSet := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		keywordSet[k] = struct{}{}
	}

	for _, c := range cands {
		symbols := cache.symbolsFor(c.Path)

		minDistance := math.MaxInt32
		for _, s := range symbols {
			if _, ok := keywordSet[strings.ToLower(s.Name)]; !ok {
				continue
			}
			if s.StartLine >= c.StartLine && s.EndLine <= c.EndLine {
				c.Components.DefinitionMatch = true
				c.DefinitionName = s.Name
				minDistance = 0
				continue
			}
			dist := distanceToRange(s.StartLine, c.StartLine, c.EndLine)
			if dist < minDistance {
				minDistance = dist
			}
		}
		if minDistance == math.MaxInt32 {
			minDistance = 0
		}
		c.Components.MinDefinitionDistance = minDistance

		c.Components.PathNameRelevance = pathNameRelevance(c.Path, keywords)
		c.Components.RangeSizePenalty = rangeSizePenalty(c.lines())

		c.Components.ReferenceCountInRange = b.referenceCountInRange(ctx, cfg, c, keywords)
	}
}

func distanceToRange(line, start, end int) int {
	if line < start {
		return start - line
	}
	if line > end {
		return line - end
	}
	return 0
}

func pathNameRelevance(path string, keywords []string) int {
	base := strings.ToLower(filepath.Base(path))
	count := 0
	for _, k := range keywords {
		if strings.Contains(base, k) {
			count++
		}
	}
	return count
}

func rangeSizePenalty(lines int) float64 {
	if lines <= rangeSizeSoftThreshold {
		return 0
	}
	return float64(lines-rangeSizeSoftThreshold) * rangeSizePenaltyRate
}

// referenceCountInRange counts, for every extracted keyword, how many
// references resolved within c's own file fall inside [StartLine,
// EndLine].
func (b *Builder) referenceCountInRange(ctx context.Context, cfg *repoconfig.Config, c *candidate, keywords []string) int {
	if b.references == nil {
		return 0
	}
	count := 0
	for _, kw := range keywords {
		result, err := b.references.Find(ctx, cfg, kw, c.Path, 0)
		if err != nil || result == nil {
			continue
		}
		for _, r := range result.References {
			if r.Line >= c.StartLine && r.Line <= c.EndLine {
				count++
			}
		}
	}
	return count
}
