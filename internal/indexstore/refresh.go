package indexstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/repomcp/repomcpd/internal/async"
	"github.com/repomcp/repomcpd/internal/bm25"
	"github.com/repomcp/repomcpd/internal/chunking"
	"github.com/repomcp/repomcpd/internal/discovery"
	"github.com/repomcp/repomcpd/internal/repoconfig"
)

// Refresher runs the incremental refresh algorithm: Discovery produces the
// candidate set, unchanged files are kept as-is, changed files are
// re-chunked and reindexed, vanished files are removed, and BM25 global
// statistics are recomputed as a byproduct of the postings store updates.
type Refresher struct {
	store      *Store
	discoverer *discovery.Discovery
	bm25Store  *bm25.Store

	mu       sync.Mutex
	progress *async.IndexProgress
}

// NewRefresher wires a Store to its Discovery and BM25 postings store.
func NewRefresher(store *Store, discoverer *discovery.Discovery, bm25Store *bm25.Store) *Refresher {
	return &Refresher{store: store, discoverer: discoverer, bm25Store: bm25Store}
}

// Progress returns the snapshot of the most recently started refresh, or nil
// if Refresh has never been called. Safe to poll from another goroutine
// while a refresh is in flight.
func (r *Refresher) Progress() *async.IndexProgressSnapshot {
	r.mu.Lock()
	p := r.progress
	r.mu.Unlock()
	if p == nil {
		return nil
	}
	snap := p.Snapshot()
	return &snap
}

// fileWork is the parallelizable per-file outcome of a reindex decision:
// reading, hashing, and chunking a single changed file. BM25 postings
// writes and map mutations stay on the caller's goroutine since they must
// apply in a deterministic order.
type fileWork struct {
	file    discovery.File
	existed bool
	hash    string
	chunks  []chunking.Chunk
}

// Refresh runs one refresh pass. If force is true, or the stored manifest's
// schema/chunking parameters mismatch cfg, every file is re-chunked
// regardless of mtime/hash.
func (r *Refresher) Refresh(ctx context.Context, cfg *repoconfig.Config, force bool) (*RefreshResult, error) {
	start := time.Now()

	progress := async.NewIndexProgress()
	r.mu.Lock()
	r.progress = progress
	r.mu.Unlock()

	if err := r.store.Lock(); err != nil {
		progress.SetError(err.Error())
		return nil, err
	}
	defer r.store.Unlock()

	manifest, err := r.store.LoadManifest()
	if err != nil {
		progress.SetError(err.Error())
		return nil, err
	}

	params := chunking.Params{Window: cfg.Chunking.Window, Overlap: cfg.Chunking.Overlap, Version: cfg.Chunking.Version}

	fullReindex := force || manifest == nil || manifest.SchemaVersion != SchemaVersion ||
		manifest.ChunkWindow != params.Window || manifest.ChunkOverlap != params.Overlap ||
		manifest.ChunkingVersion != params.Version

	existingFiles, err := r.store.LoadFiles()
	if err != nil {
		return nil, err
	}
	existingChunks, err := r.store.LoadChunks()
	if err != nil {
		return nil, err
	}
	if fullReindex {
		existingFiles = map[string]FileRecord{}
		existingChunks = map[string]ChunkRecord{}
	}

	progress.SetStage(async.StageScanning, 0)
	candidates, err := r.discoverer.Walk(ctx, cfg)
	if err != nil {
		progress.SetError(err.Error())
		return nil, err
	}
	progress.SetStage(async.StageChunking, len(candidates))

	candidateSet := make(map[string]struct{}, len(candidates))
	newFiles := make(map[string]FileRecord, len(candidates))
	newChunks := make(map[string]ChunkRecord)

	var added, updated, removed int

	// Pass 1 (sequential, cheap): decide which candidates are unchanged by
	// mtime+size alone and carry them over without touching disk.
	toProcess := make([]discovery.File, 0, len(candidates))
	for _, f := range candidates {
		candidateSet[f.Path] = struct{}{}

		prior, existed := existingFiles[f.Path]
		if existed && prior.SizeBytes == f.Size && prior.ModTimeUnix == f.ModTime {
			newFiles[f.Path] = prior
			for _, id := range prior.ChunkIDs {
				if c, ok := existingChunks[id]; ok {
					newChunks[id] = c
				}
			}
			continue
		}
		toProcess = append(toProcess, f)
	}

	// Pass 2 (parallel, CPU-bound): read, hash, and chunk every candidate
	// whose mtime/size changed. Bounded by errgroup.SetLimit so a large
	// refresh doesn't open every file in the repo at once.
	work := make([]fileWork, len(toProcess))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(numChunkWorkers())
	var processed int32
	for i, f := range toProcess {
		i, f := i, f
		group.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}

			prior, existed := existingFiles[f.Path]
			content, readErr := os.ReadFile(f.AbsPath)
			if readErr != nil {
				return nil
			}
			hash := contentHash(content)

			fw := fileWork{file: f, existed: existed, hash: hash}
			if !(existed && prior.ContentHash == hash) {
				fw.chunks = chunking.ChunkFile(f.Path, content, params)
			}
			work[i] = fw

			n := atomic.AddInt32(&processed, 1)
			progress.UpdateFiles(int(n))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		progress.SetError(err.Error())
		return nil, err
	}

	// Pass 3 (sequential): apply each file's outcome to the manifest maps
	// and BM25 postings store, in candidate order for determinism.
	var chunksIndexed int
	for _, fw := range work {
		f := fw.file
		prior, existed := existingFiles[f.Path]

		if fw.chunks == nil && existed && prior.ContentHash == fw.hash {
			prior.ModTimeUnix = f.ModTime
			newFiles[f.Path] = prior
			for _, id := range prior.ChunkIDs {
				if c, ok := existingChunks[id]; ok {
					newChunks[id] = c
				}
			}
			continue
		}

		if existed {
			for _, id := range prior.ChunkIDs {
				if err := r.bm25Store.DeleteDocument(ctx, id); err != nil {
					progress.SetError(err.Error())
					return nil, err
				}
			}
			updated++
		} else {
			added++
		}

		chunkIDs := make([]string, 0, len(fw.chunks))
		for _, c := range fw.chunks {
			chunkIDs = append(chunkIDs, c.ChunkID)
			newChunks[c.ChunkID] = ChunkRecord{ChunkID: c.ChunkID, Path: c.Path, StartLine: c.StartLine, EndLine: c.EndLine}

			tf := bm25.TermFrequencies(bm25.Tokenize(c.Text))
			if err := r.bm25Store.PutDocument(ctx, c.ChunkID, c.Path, c.StartLine, c.EndLine, tf); err != nil {
				progress.SetError(err.Error())
				return nil, err
			}
			chunksIndexed++
		}
		progress.SetChunksTotal(chunksIndexed)
		progress.UpdateChunks(chunksIndexed)

		newFiles[f.Path] = FileRecord{
			Path:        f.Path,
			SizeBytes:   f.Size,
			ModTimeUnix: f.ModTime,
			ContentHash: fw.hash,
			Extension:   filepath.Ext(f.Path),
			ChunkIDs:    chunkIDs,
		}
	}

	progress.SetStage(async.StageIndexing, len(existingFiles))
	for path, prior := range existingFiles {
		if _, stillPresent := candidateSet[path]; stillPresent {
			continue
		}
		removed++
		for _, id := range prior.ChunkIDs {
			if err := r.bm25Store.DeleteDocument(ctx, id); err != nil {
				progress.SetError(err.Error())
				return nil, err
			}
		}
	}

	if err := r.store.WriteFiles(newFiles); err != nil {
		progress.SetError(err.Error())
		return nil, err
	}
	if err := r.store.WriteChunks(newChunks); err != nil {
		progress.SetError(err.Error())
		return nil, err
	}

	now := time.Now()
	if err := r.store.WriteManifest(&Manifest{
		SchemaVersion:   SchemaVersion,
		ChunkWindow:     params.Window,
		ChunkOverlap:    params.Overlap,
		ChunkingVersion: params.Version,
		LastRefreshUnix: now.Unix(),
		RepoRoot:        cfg.RepoRoot,
	}); err != nil {
		progress.SetError(err.Error())
		return nil, err
	}

	progress.SetReady()
	return &RefreshResult{
		Added:         added,
		Updated:       updated,
		Removed:       removed,
		DurationMs:    time.Since(start).Milliseconds(),
		TimestampUnix: now.Unix(),
	}, nil
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// numChunkWorkers bounds per-file parallelism during refresh to the host's
// CPU count, since chunking and tokenizing are CPU-bound.
func numChunkWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}
