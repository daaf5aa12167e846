// Package references implements the Reference Engine: given a symbol
// name (optionally qualified as Owner.name) and an optional path scope,
// find usage sites across the indexed file set using each file's
// adapter, then classify confidence and apply deterministic ordering
// and truncation.
package references

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/repomcp/repomcpd/internal/adapters"
	"github.com/repomcp/repomcpd/internal/discovery"
	"github.com/repomcp/repomcpd/internal/repoconfig"
	"github.com/repomcp/repomcpd/internal/sandbox"
)

// Result bundles the engine's response, including truncation accounting
// so callers can tell a short result apart from one cut off by a cap.
type Result struct {
	References      []adapters.Reference
	Truncated       bool
	TotalCandidates int
}

// Engine resolves references using Discovery for candidate files and the
// Adapter Registry for per-file extraction. Reads are always mediated by
// Sandbox.
type Engine struct {
	registry   *adapters.Registry
	discoverer *discovery.Discovery
	box        *sandbox.Sandbox
}

// New creates a Reference Engine.
func New(registry *adapters.Registry, discoverer *discovery.Discovery, box *sandbox.Sandbox) *Engine {
	return &Engine{registry: registry, discoverer: discoverer, box: box}
}

// Find resolves every reference to symbol. If path is non-empty, only
// that file is scanned; otherwise the full Discovery candidate set
// (same filters as indexing) is scanned. maxReferences caps the
// returned set; TotalCandidates and Truncated report what was dropped.
func (e *Engine) Find(ctx context.Context, cfg *repoconfig.Config, symbol, path string, maxReferences int) (*Result, error) {
	var files []string
	if path != "" {
		resolved, blocked := e.box.Resolve(path)
		if blocked != nil {
			return nil, blocked
		}
		files = []string{relPath(cfg.RepoRoot, resolved)}
	} else {
		candidates, err := e.discoverer.Walk(ctx, cfg)
		if err != nil {
			return nil, err
		}
		for _, f := range candidates {
			files = append(files, f.Path)
		}
	}

	name := trailingComponent(symbol)

	var all []adapters.Reference
	astMatchCount := 0

	for _, relativePath := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		absPath, blocked := e.box.Resolve(relativePath)
		if blocked != nil {
			continue
		}

		adapter := e.registry.For(relativePath)
		if adapter == nil {
			continue
		}

		content, err := os.ReadFile(absPath)
		if err != nil {
			continue
		}

		refs := adapter.ExtractReferences(relativePath, content, []string{symbol})
		for _, r := range refs {
			if trailingComponent(r.Symbol) != name {
				continue
			}
			if r.Strategy == adapters.StrategyAST {
				astMatchCount++
			}
			all = append(all, r)
		}
	}

	for i := range all {
		all[i].Confidence = classify(all[i], astMatchCount)
	}

	adapters.SortReferences(all)

	total := len(all)
	truncated := false
	if maxReferences > 0 && total > maxReferences {
		all = all[:maxReferences]
		truncated = true
	}

	return &Result{References: all, Truncated: truncated, TotalCandidates: total}, nil
}

func classify(r adapters.Reference, astMatchCount int) adapters.Confidence {
	if r.Strategy != adapters.StrategyAST {
		return adapters.ConfidenceLow
	}
	if astMatchCount <= 1 {
		return adapters.ConfidenceHigh
	}
	return adapters.ConfidenceMedium
}

func trailingComponent(symbol string) string {
	if idx := strings.LastIndex(symbol, "."); idx >= 0 {
		return symbol[idx+1:]
	}
	return symbol
}

func relPath(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}
