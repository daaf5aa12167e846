package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/repomcp/repomcpd/internal/adapters"
	"github.com/repomcp/repomcpd/internal/adapters/lexical"
	"github.com/repomcp/repomcpd/internal/adapters/python"
	"github.com/repomcp/repomcpd/internal/audit"
	"github.com/repomcp/repomcpd/internal/bm25"
	"github.com/repomcp/repomcpd/internal/bundler"
	"github.com/repomcp/repomcpd/internal/discovery"
	"github.com/repomcp/repomcpd/internal/handlers"
	"github.com/repomcp/repomcpd/internal/indexstore"
	"github.com/repomcp/repomcpd/internal/protocol"
	"github.com/repomcp/repomcpd/internal/references"
	"github.com/repomcp/repomcpd/internal/repoconfig"
	"github.com/repomcp/repomcpd/internal/sandbox"
)

// env bundles every long-lived component a command needs, closed over a
// single repo root. serve, index, search, status and audit each build one
// via newEnv before doing their real work, so those one-shot commands and
// the serve loop construct their dependencies identically (doctor and
// version do not use it).
type env struct {
	cfg        *repoconfig.Config
	box        *sandbox.Sandbox
	discoverer *discovery.Discovery
	store      *indexstore.Store
	bm25Store  *bm25.Store
	refresher  *indexstore.Refresher
	registrar  *handlers.Registrar
	auditLog   *audit.Log
}

func newEnv(repoRoot string) (*env, error) {
	cfg, err := repoconfig.Load(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	box, err := sandbox.New(cfg.RepoRoot, cfg.Paths.DenylistGlobs, cfg.SandboxLimits())
	if err != nil {
		return nil, fmt.Errorf("init sandbox: %w", err)
	}

	disc, err := discovery.New()
	if err != nil {
		return nil, fmt.Errorf("init discovery: %w", err)
	}

	store, err := indexstore.Open(filepath.Join(cfg.DataDir, "index"))
	if err != nil {
		return nil, fmt.Errorf("open index store: %w", err)
	}

	bm25Store, err := bm25.Open(store.BM25DBPath())
	if err != nil {
		return nil, fmt.Errorf("open bm25 store: %w", err)
	}

	refresher := indexstore.NewRefresher(store, disc, bm25Store)
	registry := adapters.NewRegistry(lexical.New(), python.New())
	refEngine := references.New(registry, disc, box)
	searchEngine := bm25.NewEngine(bm25Store)
	bundleBuilder := bundler.New(searchEngine, registry, refEngine, box)

	auditLog, err := audit.Open(filepath.Join(cfg.DataDir, "audit.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	registrar := &handlers.Registrar{
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
	}

	return &env{
		cfg:        cfg,
		box:        box,
		discoverer: disc,
		store:      store,
		bm25Store:  bm25Store,
		refresher:  refresher,
		registrar:  registrar,
		auditLog:   auditLog,
	}, nil
}

// newDispatcher binds e's Registrar to a fresh protocol.Dispatcher.
func newDispatcher(e *env) *protocol.Dispatcher {
	d := protocol.NewDispatcher()
	e.registrar.RegisterAll(d)
	return d
}

func (e *env) Close() error {
	var firstErr error
	if err := e.bm25Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.auditLog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
