package handlers

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repomcp/repomcpd/internal/adapters"
	"github.com/repomcp/repomcpd/internal/adapters/lexical"
	"github.com/repomcp/repomcpd/internal/adapters/python"
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

func writeRepoFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestRegistrar(t *testing.T) (*Registrar, string) {
	t.Helper()
	root := t.TempDir()
	writeRepoFile(t, root, "widget.go", "package widget\n\nfunc Widget() string {\n\treturn \"widget\"\n}\n")
	writeRepoFile(t, root, ".env", "SECRET=1\n")

	cfg := repoconfig.Default(root)

	box, err := sandbox.New(root, sandbox.DefaultDenylistGlobs(), sandbox.DefaultLimits())
	require.NoError(t, err)

	disc, err := discovery.New()
	require.NoError(t, err)

	dataDir := t.TempDir()
	store, err := indexstore.Open(dataDir)
	require.NoError(t, err)

	bm25Store, err := bm25.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { bm25Store.Close() })

	refresher := indexstore.NewRefresher(store, disc, bm25Store)
	_, err = refresher.Refresh(context.Background(), cfg, false)
	require.NoError(t, err)

	registry := adapters.NewRegistry(lexical.New(), python.New())
	refEngine := references.New(registry, disc, box)
	searchEngine := bm25.NewEngine(bm25Store)
	bundleBuilder := bundler.New(searchEngine, registry, refEngine, box)

	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { auditLog.Close() })

	return &Registrar{
		Config:     cfg,
		Box:        box,
		Discoverer: disc,
		Store:      store,
		Refresher:  refresher,
		BM25Store:  bm25Store,
		Search:     searchEngine,
		Registry:   registry,
		References: refEngine,
		Bundler:    bundleBuilder,
		AuditLog:   auditLog,
	}, root
}

func TestStatus_ReportsReadyAfterRefresh(t *testing.T) {
	r, _ := newTestRegistrar(t)
	result, _, err := r.status(context.Background(), nil)
	require.NoError(t, err)
	status := result.(StatusResult)
	assert.Equal(t, IndexStatusReady, status.IndexStatus)
	// .env is hidden and denylisted, so widget.go is the only indexed file.
	assert.Equal(t, 1, status.IndexedFileCount)
	assert.Contains(t, status.EnabledAdapters, "python")
	assert.Contains(t, status.EnabledAdapters, "lexical")
}

func TestListFiles_FiltersByGlob(t *testing.T) {
	r, _ := newTestRegistrar(t)
	params, _ := json.Marshal(ListFilesParams{Glob: "*.go"})
	result, _, err := r.listFiles(context.Background(), params)
	require.NoError(t, err)
	entries := result.([]FileEntry)
	require.Len(t, entries, 1)
	assert.Equal(t, "widget.go", entries[0].Path)
}

func TestOpenFile_ReturnsNumberedLines(t *testing.T) {
	r, _ := newTestRegistrar(t)
	params, _ := json.Marshal(OpenFileParams{Path: "widget.go", StartLine: 1, EndLine: 2})
	result, _, err := r.openFile(context.Background(), params)
	require.NoError(t, err)
	res := result.(OpenFileResult)
	require.Len(t, res.NumberedLines, 2)
	assert.Equal(t, 1, res.NumberedLines[0].Line)
	assert.Equal(t, "package widget", res.NumberedLines[0].Text)
}

func TestOpenFile_DenylistedPathIsBlocked(t *testing.T) {
	r, _ := newTestRegistrar(t)
	params, _ := json.Marshal(OpenFileParams{Path: ".env"})
	_, _, err := r.openFile(context.Background(), params)
	require.Error(t, err)
	blocked, ok := err.(*sandbox.Blocked)
	require.True(t, ok)
	assert.Equal(t, sandbox.ReasonDenylisted, blocked.Reason)
}

func TestOutline_ReturnsGoFunctionSymbol(t *testing.T) {
	r, _ := newTestRegistrar(t)
	params, _ := json.Marshal(OutlineParams{Path: "widget.go"})
	result, _, err := r.outline(context.Background(), params)
	require.NoError(t, err)
	res := result.(OutlineResult)
	assert.Equal(t, "go", res.Language)
	require.NotEmpty(t, res.Symbols)
}

func TestSearch_FindsIndexedTerm(t *testing.T) {
	r, _ := newTestRegistrar(t)
	params, _ := json.Marshal(SearchParams{Query: "widget"})
	result, _, err := r.search(context.Background(), params)
	require.NoError(t, err)
	res := result.(SearchResult)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "widget.go", res.Hits[0].Path)
}

func TestReferences_FindsCallSite(t *testing.T) {
	r, root := newTestRegistrar(t)
	writeRepoFile(t, root, "caller.go", "package widget\n\nfunc useIt() string {\n\treturn Widget()\n}\n")
	_, err := r.Refresher.Refresh(context.Background(), r.Config, true)
	require.NoError(t, err)

	params, _ := json.Marshal(ReferencesParams{Symbol: "Widget"})
	result, _, err := r.references(context.Background(), params)
	require.NoError(t, err)
	res := result.(ReferencesResult)
	assert.NotZero(t, res.TotalCandidates)
}

func TestBuildContextBundle_RespectsBudget(t *testing.T) {
	r, _ := newTestRegistrar(t)
	params, _ := json.Marshal(BuildBundleParams{
		Prompt:       "widget",
		Budget:       BundleBudget{MaxFiles: 1, MaxTotalLines: 50},
		IncludeTests: true,
	})
	result, _, err := r.buildContextBundle(context.Background(), params)
	require.NoError(t, err)
	bundle := result.(*bundler.Bundle)
	assert.LessOrEqual(t, bundle.Totals.Files, 1)
}

func TestRefreshIndex_IsFixpointOnSecondCall(t *testing.T) {
	r, _ := newTestRegistrar(t)
	params, _ := json.Marshal(RefreshParams{Force: false})
	result, _, err := r.refreshIndex(context.Background(), params)
	require.NoError(t, err)
	res := result.(RefreshResult)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.Removed)
}

func TestAuditLog_ReturnsEmptyWhenNoEventsRecorded(t *testing.T) {
	r, _ := newTestRegistrar(t)
	result, _, err := r.auditLog(context.Background(), nil)
	require.NoError(t, err)
	res := result.(AuditLogResult)
	assert.Empty(t, res.Events)
}

func TestRegisterAll_WiresAllNineTools(t *testing.T) {
	r, _ := newTestRegistrar(t)
	d := protocol.NewDispatcher()
	r.RegisterAll(d)

	for _, tool := range []string{
		"repo.status", "repo.list_files", "repo.open_file", "repo.outline",
		"repo.search", "repo.references", "repo.build_context_bundle",
		"repo.refresh_index", "repo.audit_log",
	} {
		resp := d.Dispatch(context.Background(), protocol.Request{ID: "1", Method: tool})
		assert.NotEqual(t, protocol.CodeUnknownTool, errCodeOf(resp), "tool %s should be registered", tool)
	}
}

func errCodeOf(resp protocol.Response) string {
	if resp.Error == nil {
		return ""
	}
	return resp.Error.Code
}
