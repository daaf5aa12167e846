// Package discovery walks RepoRoot and produces the deterministic set of
// files Indexing and the Bundler operate over: extension-filtered,
// exclude-glob-filtered, denylist-filtered, binary files skipped, symlinks
// that would escape RepoRoot never followed.
package discovery

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/repomcp/repomcpd/internal/gitignore"
	"github.com/repomcp/repomcpd/internal/repoconfig"
)

// gitignoreCacheSize bounds the number of per-directory gitignore matchers
// kept resident; repos with very deep trees still converge to a fixed
// memory footprint.
const gitignoreCacheSize = 1000

// binarySniffBytes is the number of leading bytes inspected to classify a
// file as binary.
const binarySniffBytes = 8192

// File is one discovered, indexable file.
type File struct {
	// Path is repo-relative, forward-slash normalized.
	Path string
	// AbsPath is the fully resolved filesystem path.
	AbsPath string
	Size    int64
	ModTime int64
}

// Discovery walks a repo root and yields the deterministic indexable set.
type Discovery struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex
}

// New creates a Discovery instance with a bounded gitignore matcher cache.
func New() (*Discovery, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create gitignore cache: %w", err)
	}
	return &Discovery{gitignoreCache: cache}, nil
}

// Walk returns the sorted sequence of indexable files under cfg.RepoRoot.
// Directory traversal visits entries in alphabetical order of their
// normalized names; hidden entries (dotfiles/dotdirs) are skipped unless
// cfg.Paths.IncludeHidden is set. Symlinks whose resolved target escapes
// RepoRoot are skipped entirely, never followed.
func (d *Discovery) Walk(ctx context.Context, cfg *repoconfig.Config) ([]File, error) {
	root := cfg.RepoRoot

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve repo root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat repo root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repo root is not a directory: %s", absRoot)
	}

	var out []File

	err = filepath.WalkDir(absRoot, func(path string, entry fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			return nil
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if relPath == "." {
			return nil
		}

		if !cfg.Paths.IncludeHidden && isHidden(relPath) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			if matchesAny(relPath, cfg.Paths.ExcludeGlobs) {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			if escapesRoot(absRoot, path) {
				return nil
			}
		}

		if matchesAny(relPath, cfg.Paths.ExcludeGlobs) {
			return nil
		}
		if matchesAny(relPath, cfg.Paths.DenylistGlobs) {
			return nil
		}
		if d.isGitignored(relPath, absRoot) {
			return nil
		}

		if !hasIncludedExtension(relPath, cfg.Paths.IncludeExtensions) {
			return nil
		}

		fileInfo, infoErr := entry.Info()
		if infoErr != nil {
			return nil
		}

		if fileInfo.Size() > cfg.Limits.MaxFileBytes {
			return nil
		}

		if isBinaryFile(path) {
			return nil
		}

		out = append(out, File{
			Path:    relPath,
			AbsPath: path,
			Size:    fileInfo.Size(),
			ModTime: fileInfo.ModTime().UnixNano(),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func isHidden(relPath string) bool {
	for _, part := range strings.Split(relPath, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func hasIncludedExtension(relPath string, extensions []string) bool {
	ext := filepath.Ext(relPath)
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func matchesAny(relPath string, globs []string) bool {
	base := filepath.Base(relPath)
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, relPath); ok {
			return true
		}
		if ok, _ := doublestar.Match(g, base); ok {
			return true
		}
	}
	return false
}

// escapesRoot reports whether the fully-resolved target of a symlink lies
// outside absRoot.
func escapesRoot(absRoot, path string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return true
	}
	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, "../")
}

// isBinaryFile classifies path as binary if its leading bytes contain a
// zero byte, or fail UTF-8 decoding and also fail the latin-1 check
// (isMostlyLatin1).
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, binarySniffBytes)
	n, _ := f.Read(buf)
	sample := buf[:n]

	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}
	return !utf8.Valid(sample) && !isMostlyLatin1(sample)
}

// isMostlyLatin1 allows text sniffed as invalid UTF-8 but plausible
// latin-1 (ISO-8859-1) through, rather than misclassifying it as binary.
func isMostlyLatin1(sample []byte) bool {
	control := 0
	for _, b := range sample {
		if b < 0x09 || (b > 0x0D && b < 0x20) {
			control++
		}
	}
	return len(sample) == 0 || float64(control)/float64(len(sample)) < 0.01
}

// isGitignored checks root and every intermediate .gitignore between
// absRoot and relPath's directory.
func (d *Discovery) isGitignored(relPath, absRoot string) bool {
	if m := d.matcherFor(absRoot, ""); m != nil && m.Match(relPath, false) {
		return true
	}

	dir := filepath.Dir(relPath)
	if dir == "." {
		return false
	}

	parts := strings.Split(dir, "/")
	currentDir := absRoot
	currentBase := ""
	for _, part := range parts {
		currentDir = filepath.Join(currentDir, part)
		if currentBase == "" {
			currentBase = part
		} else {
			currentBase = currentBase + "/" + part
		}
		if m := d.matcherFor(currentDir, currentBase); m != nil && m.Match(relPath, false) {
			return true
		}
	}
	return false
}

func (d *Discovery) matcherFor(dir, base string) *gitignore.Matcher {
	d.cacheMu.RLock()
	m, ok := d.gitignoreCache.Get(dir)
	d.cacheMu.RUnlock()
	if ok {
		return m
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitignorePath); err != nil {
		return nil
	}

	m = gitignore.New()
	if err := m.AddFromFile(gitignorePath, base); err != nil {
		return nil
	}

	d.cacheMu.Lock()
	d.gitignoreCache.Add(dir, m)
	d.cacheMu.Unlock()

	return m
}

// InvalidateCache clears the cached gitignore matchers; call after a
// refresh that may have changed .gitignore contents.
func (d *Discovery) InvalidateCache() {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	d.gitignoreCache.Purge()
}
