package bundler

import (
	"fmt"
	"strings"
)

type selectionState struct {
	cand *candidate
	sel  *Selection
}

// enforceBudget selects candidates in rank order while respecting
// max_files, max_total_lines, and the sandbox's response byte cap.
// Overlapping selections from the same path are merged when the merged
// range still fits max_open_lines; exact duplicates are dropped.
func (b *Builder) enforceBudget(cands []*candidate, cache *outlineCache, budget Budget) ([]Selection, []SkippedCandidate, error) {
	limits := b.box.Limits()

	var states []*selectionState
	var skipped []SkippedCandidate
	filesUsed := make(map[string]bool)
	totalLines := 0
	totalBytes := 0

	recordSkip := func(c *candidate, reason SkipReason) {
		skipped = append(skipped, SkippedCandidate{Path: c.Path, StartLine: c.StartLine, EndLine: c.EndLine, Reason: reason})
	}

	for _, c := range cands {
		if merged := findOverlap(states, c); merged != nil {
			newStart, newEnd := mergedRange(merged.sel.StartLine, merged.sel.EndLine, c.StartLine, c.EndLine)
			if newStart == merged.sel.StartLine && newEnd == merged.sel.EndLine {
				recordSkip(c, SkipDuplicateOfSelected)
				continue
			}
			if newEnd-newStart+1 > limits.MaxOpenLines {
				recordSkip(c, SkipRangeTooLarge)
				continue
			}
			text, err := sliceLines(cache, c.Path, newStart, newEnd)
			if err != nil {
				recordSkip(c, SkipBlockedBySandbox)
				continue
			}
			oldLines := merged.sel.EndLine - merged.sel.StartLine + 1
			oldBytes := len(merged.sel.Text)
			newLines := newEnd - newStart + 1
			if budget.MaxTotalLines > 0 && totalLines-oldLines+newLines > budget.MaxTotalLines {
				recordSkip(c, SkipBudgetExhausted)
				continue
			}
			if limits.MaxTotalBytesPerResponse > 0 && int64(totalBytes-oldBytes+len(text)) > limits.MaxTotalBytesPerResponse {
				recordSkip(c, SkipBudgetExhausted)
				continue
			}
			totalLines += newLines - oldLines
			totalBytes += len(text) - oldBytes
			merged.sel.StartLine = newStart
			merged.sel.EndLine = newEnd
			merged.sel.Text = text
			continue
		}

		if c.lines() > limits.MaxOpenLines {
			recordSkip(c, SkipRangeTooLarge)
			continue
		}

		newFile := !filesUsed[c.Path]
		if newFile && budget.MaxFiles > 0 && len(filesUsed) >= budget.MaxFiles {
			recordSkip(c, SkipBudgetExhausted)
			continue
		}
		if budget.MaxTotalLines > 0 && totalLines+c.lines() > budget.MaxTotalLines {
			recordSkip(c, SkipBudgetExhausted)
			continue
		}

		text, err := sliceLines(cache, c.Path, c.StartLine, c.EndLine)
		if err != nil {
			recordSkip(c, SkipBlockedBySandbox)
			continue
		}
		if limits.MaxTotalBytesPerResponse > 0 && int64(totalBytes+len(text)) > limits.MaxTotalBytesPerResponse {
			recordSkip(c, SkipBudgetExhausted)
			continue
		}

		sel := &Selection{
			Path:      c.Path,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Rationale: rationale(c),
			WhySelected: WhySelected{
				MatchedSignals:  matchedSignals(c),
				ScoreComponents: c.Components,
				SourceQuery:     c.SourceQuery,
				MatchedTerms:    c.MatchedTerms,
				SymbolReference: c.DefinitionName,
			},
			Text: text,
		}

		states = append(states, &selectionState{cand: c, sel: sel})
		filesUsed[c.Path] = true
		totalLines += c.lines()
		totalBytes += len(text)
	}

	selections := make([]Selection, len(states))
	for i, st := range states {
		selections[i] = *st.sel
	}
	return selections, skipped, nil
}

func findOverlap(states []*selectionState, c *candidate) *selectionState {
	for _, st := range states {
		if st.sel.Path == c.Path && st.sel.StartLine <= c.EndLine && c.StartLine <= st.sel.EndLine {
			return st
		}
	}
	return nil
}

func mergedRange(aStart, aEnd, bStart, bEnd int) (int, int) {
	start := aStart
	if bStart < start {
		start = bStart
	}
	end := aEnd
	if bEnd > end {
		end = bEnd
	}
	return start, end
}

func sliceLines(cache *outlineCache, path string, start, end int) (string, error) {
	text, err := cache.textFor(path)
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(text), "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return "", nil
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}

func rationale(c *candidate) string {
	if c.DefinitionName != "" {
		return fmt.Sprintf("defines %q, matched by query %q", c.DefinitionName, c.SourceQuery)
	}
	return fmt.Sprintf("matched by query %q", c.SourceQuery)
}

func matchedSignals(c *candidate) []string {
	var signals []string
	if c.Components.DefinitionMatch {
		signals = append(signals, "definition_match")
	}
	if c.Components.SearchScore > 0 {
		signals = append(signals, "search_score")
	}
	if c.Components.ReferenceCountInRange > 0 {
		signals = append(signals, "reference_count_in_range")
	}
	if c.Components.PathNameRelevance > 0 {
		signals = append(signals, "path_name_relevance")
	}
	if c.Components.MatchedTermsCount > 0 {
		signals = append(signals, "matched_terms_count")
	}
	return signals
}
