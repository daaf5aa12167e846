package bundler

import "github.com/repomcp/repomcpd/internal/adapters"

// candidate is one working range under consideration for inclusion,
// before budget enforcement and final Selection assembly.
type candidate struct {
	Path      string
	StartLine int
	EndLine   int

	SourceQuery  string
	MatchedTerms []string

	DefinitionName string // non-empty when DefinitionMatch fired
	Components     ScoreComponents
}

func (c *candidate) lines() int {
	return c.EndLine - c.StartLine + 1
}

// overlaps reports whether a and b share a path and at least one line.
// Budget enforcement does its own overlap check (findOverlap).
func overlaps(a, b *candidate) bool {
	return a.Path == b.Path && a.StartLine <= b.EndLine && b.StartLine <= a.EndLine
}

// mergeInto extends a's range to cover b's and leaves a's score
// components unchanged. Budget enforcement merges overlapping selections
// with mergedRange instead.
func mergeInto(a, b *candidate) {
	if b.StartLine < a.StartLine {
		a.StartLine = b.StartLine
	}
	if b.EndLine > a.EndLine {
		a.EndLine = b.EndLine
	}
}

// enclosingSymbol returns the smallest symbol in symbols whose range
// encloses [start, end], or nil if none does.
func enclosingSymbol(symbols []adapters.Symbol, start, end int) *adapters.Symbol {
	var best *adapters.Symbol
	for i := range symbols {
		s := &symbols[i]
		if s.StartLine <= start && s.EndLine >= end {
			if best == nil || (s.EndLine-s.StartLine) < (best.EndLine-best.StartLine) {
				best = s
			}
		}
	}
	return best
}
