package bundler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// promptFingerprint is a stable hash of the prompt text and the effective
// ranking parameters, so identical requests against an unchanged index
// always report the same fingerprint.
func promptFingerprint(prompt string, keywords []string, budget Budget, includeTests bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "prompt:%s\n", prompt)
	fmt.Fprintf(h, "keywords:%s\n", strings.Join(keywords, ","))
	fmt.Fprintf(h, "max_files:%d\n", budget.MaxFiles)
	fmt.Fprintf(h, "max_total_lines:%d\n", budget.MaxTotalLines)
	fmt.Fprintf(h, "include_tests:%t\n", includeTests)
	fmt.Fprintf(h, "k1:%s b:%s\n", "1.5", "0.75")
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// bundleID is a content-derived deterministic identifier over the final
// ordered selection set: identical selections always yield the same id.
func bundleID(selections []Selection) string {
	sorted := make([]Selection, len(selections))
	copy(sorted, selections)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Path != sorted[j].Path {
			return sorted[i].Path < sorted[j].Path
		}
		return sorted[i].StartLine < sorted[j].StartLine
	})

	h := sha256.New()
	for _, s := range sorted {
		fmt.Fprintf(h, "%s:%d-%d\n", s.Path, s.StartLine, s.EndLine)
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
