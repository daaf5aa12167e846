// Package handlers wires the Sandbox, Discovery, Chunker, Index Store,
// BM25 Engine, Adapter Registry, Reference Engine, and Bundler into the
// nine repo.* tool handlers the protocol Dispatcher serves, translating
// between each component's internal model and the wire response shapes
// callers see. repo.build_context_bundle is the exception: it returns the
// json-tagged bundler.Bundle as-is.
package handlers

// StatusResult is the response to repo.status.
type StatusResult struct {
	RepoRoot             string          `json:"repo_root"`
	IndexStatus          string          `json:"index_status"`
	LastRefreshTimestamp int64           `json:"last_refresh_timestamp"`
	IndexedFileCount     int             `json:"indexed_file_count"`
	EnabledAdapters      []string        `json:"enabled_adapters"`
	LimitsSummary        LimitsSummary   `json:"limits_summary"`
	ChunkingSummary      ChunkingSummary `json:"chunking_summary"`
	EffectiveConfig      any             `json:"effective_config"`
}

// LimitsSummary surfaces the sandbox-enforced caps.
type LimitsSummary struct {
	MaxFileBytes             int64 `json:"max_file_bytes"`
	MaxOpenLines             int   `json:"max_open_lines"`
	MaxTotalBytesPerResponse int64 `json:"max_total_bytes_per_response"`
	MaxSearchHits            int   `json:"max_search_hits"`
	MaxReferences            int   `json:"max_references"`
}

// ChunkingSummary surfaces the chunker's effective parameters.
type ChunkingSummary struct {
	Window  int `json:"window"`
	Overlap int `json:"overlap"`
	Version int `json:"version"`
}

// Index status values surfaced by repo.status.
const (
	IndexStatusNotIndexed    = "not_indexed"
	IndexStatusReady         = "ready"
	IndexStatusSchemaMismatch = "schema_mismatch"
)

// ListFilesParams is the input to repo.list_files.
type ListFilesParams struct {
	Glob          string `json:"glob,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
	IncludeHidden bool   `json:"include_hidden,omitempty"`
}

// FileEntry is one row of repo.list_files.
type FileEntry struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	Mtime int64  `json:"mtime"`
}

// OpenFileParams is the input to repo.open_file.
type OpenFileParams struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
}

// NumberedLine is one line of repo.open_file's output.
type NumberedLine struct {
	Line int    `json:"line"`
	Text string `json:"text"`
}

// OpenFileResult is the response to repo.open_file.
type OpenFileResult struct {
	Path          string         `json:"path"`
	NumberedLines []NumberedLine `json:"numbered_lines"`
	Truncated     bool           `json:"truncated"`
}

// OutlineParams is the input to repo.outline.
type OutlineParams struct {
	Path string `json:"path"`
}

// SymbolDTO is one wire-shaped outline symbol.
type SymbolDTO struct {
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	Signature     string `json:"signature,omitempty"`
	StartLine     int    `json:"start_line"`
	EndLine       int    `json:"end_line"`
	Doc           string `json:"doc,omitempty"`
	ParentSymbol  string `json:"parent_symbol,omitempty"`
	ScopeKind     string `json:"scope_kind,omitempty"`
	IsConditional bool   `json:"is_conditional"`
	DeclContext   string `json:"decl_context,omitempty"`
}

// OutlineResult is the response to repo.outline.
type OutlineResult struct {
	Path     string      `json:"path"`
	Language string      `json:"language"`
	Symbols  []SymbolDTO `json:"symbols"`
}

// SearchParams is the input to repo.search.
type SearchParams struct {
	Query      string `json:"query"`
	Mode       string `json:"mode,omitempty"`
	TopK       int    `json:"top_k,omitempty"`
	FileGlob   string `json:"file_glob,omitempty"`
	PathPrefix string `json:"path_prefix,omitempty"`
}

// HitDTO is one wire-shaped search hit.
type HitDTO struct {
	Path         string   `json:"path"`
	StartLine    int      `json:"start_line"`
	EndLine      int      `json:"end_line"`
	Snippet      string   `json:"snippet"`
	Score        float64  `json:"score"`
	MatchedTerms []string `json:"matched_terms"`
}

// SearchResult is the response to repo.search.
type SearchResult struct {
	Hits []HitDTO `json:"hits"`
}

// ReferencesParams is the input to repo.references.
type ReferencesParams struct {
	Symbol string `json:"symbol"`
	Path   string `json:"path,omitempty"`
	TopK   int    `json:"top_k,omitempty"`
}

// ReferenceDTO is one wire-shaped reference.
type ReferenceDTO struct {
	Symbol     string `json:"symbol"`
	Path       string `json:"path"`
	Line       int    `json:"line"`
	Kind       string `json:"kind"`
	Evidence   string `json:"evidence,omitempty"`
	Strategy   string `json:"strategy"`
	Confidence string `json:"confidence"`
}

// ReferencesResult is the response to repo.references.
type ReferencesResult struct {
	Symbol          string         `json:"symbol"`
	References      []ReferenceDTO `json:"references"`
	Truncated       bool           `json:"truncated"`
	TotalCandidates int            `json:"total_candidates"`
}

// BuildBundleParams is the input to repo.build_context_bundle.
type BuildBundleParams struct {
	Prompt       string      `json:"prompt"`
	Budget       BundleBudget `json:"budget"`
	Strategy     string      `json:"strategy,omitempty"`
	IncludeTests bool        `json:"include_tests"`
}

// BundleBudget mirrors bundler.Budget on the wire.
type BundleBudget struct {
	MaxFiles      int `json:"max_files"`
	MaxTotalLines int `json:"max_total_lines"`
}

// RefreshParams is the input to repo.refresh_index.
type RefreshParams struct {
	Force bool `json:"force,omitempty"`
}

// RefreshResult is the response to repo.refresh_index.
type RefreshResult struct {
	Added      int   `json:"added"`
	Updated    int   `json:"updated"`
	Removed    int   `json:"removed"`
	DurationMs int64 `json:"duration_ms"`
	Timestamp  int64 `json:"timestamp"`
}

// AuditLogParams is the input to repo.audit_log.
type AuditLogParams struct {
	Since int64 `json:"since,omitempty"`
	Limit int   `json:"limit,omitempty"`
}

// AuditEventDTO is one wire-shaped audit event.
type AuditEventDTO struct {
	Timestamp int64  `json:"timestamp"`
	RequestID string `json:"request_id"`
	Tool      string `json:"tool"`
	OK        bool   `json:"ok"`
	Blocked   bool   `json:"blocked"`
	ErrorCode string `json:"error_code,omitempty"`
}

// AuditLogResult is the response to repo.audit_log.
type AuditLogResult struct {
	Events []AuditEventDTO `json:"events"`
}
