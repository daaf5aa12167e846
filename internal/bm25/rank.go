package bm25

import "sort"

// Order applies a total ordering: score descending, then path ascending,
// then start_line ascending, then chunk_id ascending. No two results
// ever compare equal after this sort.
func Order(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		a, c := results[i], results[j]
		if a.Score != c.Score {
			return a.Score > c.Score
		}
		if a.Path != c.Path {
			return a.Path < c.Path
		}
		if a.StartLine != c.StartLine {
			return a.StartLine < c.StartLine
		}
		return a.ChunkID < c.ChunkID
	})
}

// Truncate applies top_k truncation, capped by maxHits.
func Truncate(results []Result, topK, maxHits int) []Result {
	limit := maxHits
	if topK > 0 && topK < limit {
		limit = topK
	}
	if limit <= 0 || limit >= len(results) {
		return results
	}
	return results[:limit]
}
