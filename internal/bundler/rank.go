package bundler

import "sort"

// orderCandidates applies the exact lexicographic ranking order:
// definition_match desc, search_score desc, reference_count_in_range desc,
// path_name_relevance desc, matched_terms_count desc,
// min_definition_distance asc, range_size_penalty asc, then path asc and
// start_line asc as final tie-breakers.
func orderCandidates(cands []*candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return rankLess(cands[i], cands[j])
	})
}

func rankLess(a, b *candidate) bool {
	ac, bc := a.Components, b.Components

	if ac.DefinitionMatch != bc.DefinitionMatch {
		return ac.DefinitionMatch
	}
	if ac.SearchScore != bc.SearchScore {
		return ac.SearchScore > bc.SearchScore
	}
	if ac.ReferenceCountInRange != bc.ReferenceCountInRange {
		return ac.ReferenceCountInRange > bc.ReferenceCountInRange
	}
	if ac.PathNameRelevance != bc.PathNameRelevance {
		return ac.PathNameRelevance > bc.PathNameRelevance
	}
	if ac.MatchedTermsCount != bc.MatchedTermsCount {
		return ac.MatchedTermsCount > bc.MatchedTermsCount
	}
	if ac.MinDefinitionDistance != bc.MinDefinitionDistance {
		return ac.MinDefinitionDistance < bc.MinDefinitionDistance
	}
	if ac.RangeSizePenalty != bc.RangeSizePenalty {
		return ac.RangeSizePenalty < bc.RangeSizePenalty
	}
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	return a.StartLine < b.StartLine
}
