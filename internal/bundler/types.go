package bundler

// Budget bounds a bundle request's size.
type Budget struct {
	MaxFiles      int `json:"max_files"`
	MaxTotalLines int `json:"max_total_lines"`
}

// ScoreComponents is the score vector computed for one candidate, in the
// exact order orderCandidates ranks by.
type ScoreComponents struct {
	DefinitionMatch       bool    `json:"definition_match"`
	SearchScore           float64 `json:"search_score"`
	ReferenceCountInRange int     `json:"reference_count_in_range"`
	PathNameRelevance     int     `json:"path_name_relevance"`
	MatchedTermsCount     int     `json:"matched_terms_count"`
	MinDefinitionDistance int     `json:"min_definition_distance"`
	RangeSizePenalty      float64 `json:"range_size_penalty"`
}

// WhySelected explains one selection's provenance and scoring.
type WhySelected struct {
	MatchedSignals  []string        `json:"matched_signals"`
	ScoreComponents ScoreComponents `json:"score_components"`
	SourceQuery     string          `json:"source_query"`
	MatchedTerms    []string        `json:"matched_terms"`
	SymbolReference string          `json:"symbol_reference,omitempty"`
}

// Selection is one range of source text cited by a bundle. Text is kept
// for byte-budget accounting and audit but never serialized — a bundle
// carries only the citation and its explanation; callers fetch content
// via repo.open_file.
type Selection struct {
	Path        string      `json:"path"`
	StartLine   int         `json:"start_line"`
	EndLine     int         `json:"end_line"`
	Rationale   string      `json:"rationale"`
	WhySelected WhySelected `json:"why_selected"`
	Text        string      `json:"-"`
}

// Citation is the minimal path+range reference duplicated at the bundle
// level for quick client-side citation rendering.
type Citation struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// SkipReason is a stable rejection reason for a candidate that did not
// make it into the bundle.
type SkipReason string

const (
	SkipBudgetExhausted     SkipReason = "budget_exhausted"
	SkipDuplicateOfSelected SkipReason = "duplicate_of_selected"
	SkipBelowRankThreshold  SkipReason = "below_rank_threshold"
	SkipRangeTooLarge       SkipReason = "range_too_large"
	SkipBlockedBySandbox    SkipReason = "blocked_by_sandbox"
)

// SkippedCandidate records one candidate dropped from the bundle.
type SkippedCandidate struct {
	Path      string     `json:"path"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
	Reason    SkipReason `json:"reason"`
}

// maxSkippedReported bounds why_not_selected_summary.top_skipped (K = 10).
const maxSkippedReported = 10

// WhyNotSelectedSummary bounds the explanation of rejected candidates.
type WhyNotSelectedSummary struct {
	TopSkipped []SkippedCandidate `json:"top_skipped"`
}

// SelectionDebug groups the bundler's explanation of its own selection
// process.
type SelectionDebug struct {
	WhyNotSelectedSummary WhyNotSelectedSummary `json:"why_not_selected_summary"`
}

// Audit carries debugging detail that never affects selection outcomes.
type Audit struct {
	SelectionDebug SelectionDebug    `json:"selection_debug"`
	RankingDebug   map[string]string `json:"ranking_debug,omitempty"`
}

// Totals reports the size of the assembled bundle.
type Totals struct {
	Files int `json:"files"`
	Lines int `json:"lines"`
	Bytes int `json:"bytes"`
}

// Bundle is the complete, deterministic response to build_context_bundle.
type Bundle struct {
	BundleID          string      `json:"bundle_id"`
	PromptFingerprint string      `json:"prompt_fingerprint"`
	Strategy          string      `json:"strategy"`
	Budget            Budget      `json:"budget"`
	Totals            Totals      `json:"totals"`
	Selections        []Selection `json:"selections"`
	Citations         []Citation  `json:"citations"`
	Audit             Audit       `json:"audit"`
}
