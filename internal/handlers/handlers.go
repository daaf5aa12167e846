package handlers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/repomcp/repomcpd/internal/adapters"
	"github.com/repomcp/repomcpd/internal/audit"
	"github.com/repomcp/repomcpd/internal/bm25"
	"github.com/repomcp/repomcpd/internal/bundler"
	"github.com/repomcp/repomcpd/internal/discovery"
	"github.com/repomcp/repomcpd/internal/indexstore"
	"github.com/repomcp/repomcpd/internal/protocol"
	"github.com/repomcp/repomcpd/internal/references"
	"github.com/repomcp/repomcpd/internal/repoconfig"
	"github.com/repomcp/repomcpd/internal/sandbox"
)

// Registrar holds every component the tool surface dispatches into and
// binds them to a protocol.Dispatcher under their repo.* names.
type Registrar struct {
	Config     *repoconfig.Config
	Box        *sandbox.Sandbox
	Discoverer *discovery.Discovery
	Store      *indexstore.Store
	Refresher  *indexstore.Refresher
	BM25Store  *bm25.Store
	Search     *bm25.Engine
	Registry   *adapters.Registry
	References *references.Engine
	Bundler    *bundler.Builder
	AuditLog   *audit.Log
}

// RegisterAll binds all nine tool handlers to d.
func (r *Registrar) RegisterAll(d *protocol.Dispatcher) {
	d.Register("repo.status", r.status)
	d.Register("repo.list_files", r.listFiles)
	d.Register("repo.open_file", r.openFile)
	d.Register("repo.outline", r.outline)
	d.Register("repo.search", r.search)
	d.Register("repo.references", r.references)
	d.Register("repo.build_context_bundle", r.buildContextBundle)
	d.Register("repo.refresh_index", r.refreshIndex)
	d.Register("repo.audit_log", r.auditLog)
}

func decodeParams(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return protocol.ErrInvalidParams
	}
	return nil
}

func (r *Registrar) status(ctx context.Context, params []byte) (any, []string, error) {
	manifest, err := r.Store.LoadManifest()
	if err != nil {
		return nil, nil, protocol.ErrIndexCorrupt
	}

	files, err := r.Store.LoadFiles()
	if err != nil {
		return nil, nil, protocol.ErrIndexCorrupt
	}

	status := IndexStatusNotIndexed
	var lastRefresh int64
	if manifest != nil {
		lastRefresh = manifest.LastRefreshUnix
		switch {
		case manifest.SchemaVersion != indexstore.SchemaVersion:
			status = IndexStatusSchemaMismatch
		default:
			status = IndexStatusReady
		}
	}

	var enabled []string
	if r.Config.Adapters.Python {
		enabled = append(enabled, "python")
	}
	if r.Config.Adapters.Lexical {
		enabled = append(enabled, "lexical")
	}

	result := StatusResult{
		RepoRoot:             r.Config.RepoRoot,
		IndexStatus:          status,
		LastRefreshTimestamp: lastRefresh,
		IndexedFileCount:     len(files),
		EnabledAdapters:      enabled,
		LimitsSummary: LimitsSummary{
			MaxFileBytes:             r.Config.Limits.MaxFileBytes,
			MaxOpenLines:             r.Config.Limits.MaxOpenLines,
			MaxTotalBytesPerResponse: r.Config.Limits.MaxTotalBytesPerResponse,
			MaxSearchHits:            r.Config.Limits.MaxSearchHits,
			MaxReferences:            r.Config.Limits.MaxReferences,
		},
		ChunkingSummary: ChunkingSummary{
			Window:  r.Config.Chunking.Window,
			Overlap: r.Config.Chunking.Overlap,
			Version: r.Config.Chunking.Version,
		},
		EffectiveConfig: r.Config,
	}
	return result, nil, nil
}

func (r *Registrar) listFiles(ctx context.Context, params []byte) (any, []string, error) {
	var p ListFilesParams
	if err := decodeParams(params, &p); err != nil {
		return nil, nil, err
	}

	cfg := r.Config
	if p.IncludeHidden {
		cloned := *cfg
		cloned.Paths.IncludeHidden = true
		cfg = &cloned
	}

	files, err := r.Discoverer.Walk(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]FileEntry, 0, len(files))
	for _, f := range files {
		if p.Glob != "" {
			ok, err := doublestar.Match(p.Glob, f.Path)
			if err != nil || !ok {
				continue
			}
		}
		entries = append(entries, FileEntry{Path: f.Path, Size: f.Size, Mtime: f.ModTime})
	}

	if p.MaxResults > 0 && len(entries) > p.MaxResults {
		entries = entries[:p.MaxResults]
	}

	return entries, nil, nil
}

func (r *Registrar) openFile(ctx context.Context, params []byte) (any, []string, error) {
	var p OpenFileParams
	if err := decodeParams(params, &p); err != nil {
		return nil, nil, err
	}
	if p.Path == "" {
		return nil, nil, protocol.ErrInvalidParams
	}

	resolved, blocked := r.Box.Resolve(p.Path)
	if blocked != nil {
		return nil, nil, blocked
	}

	info, statErr := os.Stat(resolved)
	if statErr != nil {
		return nil, nil, protocol.ErrInvalidParams
	}
	if blocked := r.Box.CheckFileSize(info.Size()); blocked != nil {
		return nil, nil, blocked
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return nil, nil, protocol.ErrInvalidParams
	}

	lines := strings.Split(string(content), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	start := p.StartLine
	if start <= 0 {
		start = 1
	}
	end := p.EndLine
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		start = len(lines) + 1
	}

	if blocked := r.Box.CheckLineRange(start, end); blocked != nil {
		return nil, nil, blocked
	}

	numbered := make([]NumberedLine, 0, end-start+1)
	var responseBytes int64
	truncated := false
	for i := start; i <= end; i++ {
		if i < 1 || i > len(lines) {
			continue
		}
		text := lines[i-1]
		responseBytes += int64(len(text)) + 1
		if blocked := r.Box.CheckResponseSize(responseBytes); blocked != nil {
			truncated = true
			break
		}
		numbered = append(numbered, NumberedLine{Line: i, Text: text})
	}

	relPath, relErr := filepath.Rel(r.Config.RepoRoot, resolved)
	if relErr != nil {
		relPath = p.Path
	}

	return OpenFileResult{Path: filepath.ToSlash(relPath), NumberedLines: numbered, Truncated: truncated}, nil, nil
}

func (r *Registrar) outline(ctx context.Context, params []byte) (any, []string, error) {
	var p OutlineParams
	if err := decodeParams(params, &p); err != nil {
		return nil, nil, err
	}
	if p.Path == "" {
		return nil, nil, protocol.ErrInvalidParams
	}

	resolved, blocked := r.Box.Resolve(p.Path)
	if blocked != nil {
		return nil, nil, blocked
	}

	info, statErr := os.Stat(resolved)
	if statErr != nil {
		return nil, nil, protocol.ErrInvalidParams
	}
	if blocked := r.Box.CheckFileSize(info.Size()); blocked != nil {
		return nil, nil, blocked
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return nil, nil, protocol.ErrInvalidParams
	}

	relPath, relErr := filepath.Rel(r.Config.RepoRoot, resolved)
	if relErr != nil {
		relPath = p.Path
	}
	relPath = filepath.ToSlash(relPath)

	adapter := r.Registry.For(relPath)
	var symbols []adapters.Symbol
	if adapter != nil {
		symbols = adapter.Outline(relPath, content)
	}

	dtos := make([]SymbolDTO, 0, len(symbols))
	for _, s := range symbols {
		dtos = append(dtos, SymbolDTO{
			Kind:          string(s.Kind),
			Name:          s.Name,
			Signature:     s.Signature,
			StartLine:     s.StartLine,
			EndLine:       s.EndLine,
			Doc:           s.Doc,
			ParentSymbol:  s.ParentSymbol,
			ScopeKind:     string(s.ScopeKind),
			IsConditional: s.IsConditional,
			DeclContext:   s.DeclContext,
		})
	}

	return OutlineResult{Path: relPath, Language: languageFor(relPath), Symbols: dtos}, nil, nil
}

func (r *Registrar) search(ctx context.Context, params []byte) (any, []string, error) {
	var p SearchParams
	if err := decodeParams(params, &p); err != nil {
		return nil, nil, err
	}
	if p.Query == "" {
		return nil, nil, protocol.ErrInvalidParams
	}

	topK := p.TopK
	if topK <= 0 {
		topK = 20
	}

	hits, err := r.Search.Search(ctx, bm25.Query{
		Text:       p.Query,
		FileGlob:   p.FileGlob,
		PathPrefix: p.PathPrefix,
		TopK:       topK,
		MaxHits:    r.Config.Limits.MaxSearchHits,
	})
	if err != nil {
		return nil, nil, protocol.ErrIndexCorrupt
	}

	dtos := make([]HitDTO, 0, len(hits))
	for _, h := range hits {
		snippet := r.snippetFor(h)
		dtos = append(dtos, HitDTO{
			Path:         h.Path,
			StartLine:    h.StartLine,
			EndLine:      h.EndLine,
			Snippet:      snippet,
			Score:        h.Score,
			MatchedTerms: h.MatchedTerms,
		})
	}

	return SearchResult{Hits: dtos}, nil, nil
}

// snippetFor re-reads a hit's source range through the sandbox to build a
// plain-text snippet with bm25.Snippet; the BM25 postings store keeps term
// frequencies only, never raw text.
func (r *Registrar) snippetFor(h bm25.Hit) string {
	resolved, blocked := r.Box.Resolve(h.Path)
	if blocked != nil {
		return ""
	}
	content, err := os.ReadFile(resolved)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(content), "\n")
	start, end := h.StartLine, h.EndLine
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	text := strings.Join(lines[start-1:end], "\n")
	return bm25.Snippet(text, h.MatchedTerms, 320)
}

func (r *Registrar) references(ctx context.Context, params []byte) (any, []string, error) {
	var p ReferencesParams
	if err := decodeParams(params, &p); err != nil {
		return nil, nil, err
	}
	if p.Symbol == "" {
		return nil, nil, protocol.ErrInvalidParams
	}

	maxReferences := p.TopK
	if maxReferences <= 0 {
		maxReferences = r.Config.Limits.MaxReferences
	}

	result, err := r.References.Find(ctx, r.Config, p.Symbol, p.Path, maxReferences)
	if err != nil {
		return nil, nil, err
	}

	dtos := make([]ReferenceDTO, 0, len(result.References))
	for _, ref := range result.References {
		dtos = append(dtos, ReferenceDTO{
			Symbol:     ref.Symbol,
			Path:       ref.Path,
			Line:       ref.Line,
			Kind:       string(ref.Kind),
			Evidence:   ref.Evidence,
			Strategy:   string(ref.Strategy),
			Confidence: string(ref.Confidence),
		})
	}

	return ReferencesResult{
		Symbol:          p.Symbol,
		References:      dtos,
		Truncated:       result.Truncated,
		TotalCandidates: result.TotalCandidates,
	}, nil, nil
}

func (r *Registrar) buildContextBundle(ctx context.Context, params []byte) (any, []string, error) {
	var p BuildBundleParams
	if err := decodeParams(params, &p); err != nil {
		return nil, nil, err
	}
	if p.Prompt == "" {
		return nil, nil, protocol.ErrInvalidParams
	}

	budget := bundler.Budget{MaxFiles: p.Budget.MaxFiles, MaxTotalLines: p.Budget.MaxTotalLines}
	if budget.MaxFiles <= 0 {
		budget.MaxFiles = 10
	}
	if budget.MaxTotalLines <= 0 {
		budget.MaxTotalLines = 400
	}

	bundle, err := r.Bundler.Build(ctx, r.Config, p.Prompt, budget, p.IncludeTests)
	if err != nil {
		return nil, nil, err
	}

	return bundle, nil, nil
}

func (r *Registrar) refreshIndex(ctx context.Context, params []byte) (any, []string, error) {
	var p RefreshParams
	if err := decodeParams(params, &p); err != nil {
		return nil, nil, err
	}

	result, err := r.Refresher.Refresh(ctx, r.Config, p.Force)
	if err != nil {
		return nil, nil, protocol.ErrIndexCorrupt
	}

	return RefreshResult{
		Added:      result.Added,
		Updated:    result.Updated,
		Removed:    result.Removed,
		DurationMs: result.DurationMs,
		Timestamp:  result.TimestampUnix,
	}, nil, nil
}

func (r *Registrar) auditLog(ctx context.Context, params []byte) (any, []string, error) {
	var p AuditLogParams
	if err := decodeParams(params, &p); err != nil {
		return nil, nil, err
	}
	if r.AuditLog == nil {
		return AuditLogResult{Events: []AuditEventDTO{}}, nil, nil
	}

	events, err := r.AuditLog.Read(p.Since, p.Limit)
	if err != nil {
		return nil, nil, protocol.ErrIndexCorrupt
	}

	dtos := make([]AuditEventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, AuditEventDTO{
			Timestamp: e.TimestampUnix,
			RequestID: e.RequestID,
			Tool:      e.Tool,
			OK:        e.OK,
			Blocked:   e.Blocked,
			ErrorCode: e.ErrorCode,
		})
	}

	return AuditLogResult{Events: dtos}, nil, nil
}

var languageExtensions = map[string]string{
	".py":  "python",
	".ts":  "typescript",
	".tsx": "typescript",
	".js":  "javascript",
	".jsx": "javascript",
	".java": "java",
	".go":  "go",
	".rs":  "rust",
	".cpp": "cpp",
	".cc":  "cpp",
	".cxx": "cpp",
	".hpp": "cpp",
	".h":   "cpp",
	".c":   "c",
	".cs":  "csharp",
}

func languageFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageExtensions[ext]; ok {
		return lang
	}
	return "unknown"
}
