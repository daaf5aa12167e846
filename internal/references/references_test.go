package references

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repomcp/repomcpd/internal/adapters"
	"github.com/repomcp/repomcpd/internal/adapters/lexical"
	"github.com/repomcp/repomcpd/internal/adapters/python"
	"github.com/repomcp/repomcpd/internal/discovery"
	"github.com/repomcp/repomcpd/internal/repoconfig"
	"github.com/repomcp/repomcpd/internal/sandbox"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestEngine(t *testing.T, root string) (*Engine, *repoconfig.Config) {
	t.Helper()
	box, err := sandbox.New(root, sandbox.DefaultDenylistGlobs(), sandbox.DefaultLimits())
	require.NoError(t, err)
	disc, err := discovery.New()
	require.NoError(t, err)
	registry := adapters.NewRegistry(lexical.New(), python.New())
	return New(registry, disc, box), repoconfig.Default(root)
}

func TestFind_ScopedToSinglePath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {\n\tWidget()\n}\n")
	writeFile(t, root, "other.go", "package main\n\nfunc Widget() {}\n")

	e, cfg := newTestEngine(t, root)
	result, err := e.Find(context.Background(), cfg, "Widget", "main.go", 0)
	require.NoError(t, err)

	require.Len(t, result.References, 1)
	assert.Equal(t, "main.go", result.References[0].Path)
}

func TestFind_ScansFullDiscoverySetWhenPathOmitted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Widget() {}\n")
	writeFile(t, root, "b.go", "package b\n\nfunc use() {\n\tWidget()\n}\n")

	e, cfg := newTestEngine(t, root)
	result, err := e.Find(context.Background(), cfg, "Widget", "", 0)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(result.References), 1)
	var paths []string
	for _, r := range result.References {
		paths = append(paths, r.Path)
	}
	assert.Contains(t, paths, "b.go")
}

func TestFind_TruncatesAndReportsTotalCandidates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc use() {\n\tWidget()\n\tWidget()\n\tWidget()\n}\n")

	e, cfg := newTestEngine(t, root)
	result, err := e.Find(context.Background(), cfg, "Widget", "a.go", 2)
	require.NoError(t, err)

	assert.Len(t, result.References, 2)
	assert.True(t, result.Truncated)
	assert.Equal(t, 3, result.TotalCandidates)
}

func TestFind_QualifiedSymbolMatchesTrailingComponent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "class Owner:\n    def name(self):\n        pass\n\n\ndef use():\n    Owner().name()\n")

	e, cfg := newTestEngine(t, root)
	result, err := e.Find(context.Background(), cfg, "Owner.name", "a.py", 0)
	require.NoError(t, err)

	assert.NotEmpty(t, result.References)
}

func TestFind_OrdersDeterministically(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "z.go", "package z\n\nfunc use() {\n\tWidget()\n}\n")
	writeFile(t, root, "a.go", "package a\n\nfunc use() {\n\tWidget()\n}\n")

	e, cfg := newTestEngine(t, root)
	result, err := e.Find(context.Background(), cfg, "Widget", "", 0)
	require.NoError(t, err)
	require.Len(t, result.References, 2)

	assert.Equal(t, "a.go", result.References[0].Path)
	assert.Equal(t, "z.go", result.References[1].Path)
}

func TestFind_BlockedPathReturnsError(t *testing.T) {
	root := t.TempDir()
	e, cfg := newTestEngine(t, root)

	_, err := e.Find(context.Background(), cfg, "Widget", "../outside.go", 0)
	require.Error(t, err)
}
