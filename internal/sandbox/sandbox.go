// Package sandbox canonicalizes and authorizes every path the service
// touches, keeping all filesystem access rooted at a single repo_root.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Reason is a stable, typed reason a path was blocked.
type Reason string

const (
	ReasonPathTraversal    Reason = "PATH_TRAVERSAL"
	ReasonSymlinkEscape    Reason = "SYMLINK_ESCAPE"
	ReasonAbsoluteOutside  Reason = "ABSOLUTE_OUTSIDE_ROOT"
	ReasonDenylisted       Reason = "DENYLISTED"
	ReasonFileTooLarge     Reason = "FILE_TOO_LARGE"
	ReasonRangeTooLarge    Reason = "RANGE_TOO_LARGE"
	ReasonResponseTooLarge Reason = "RESPONSE_TOO_LARGE"
)

// hints gives a short remediation hint per block reason.
var hints = map[Reason]string{
	ReasonPathTraversal:    "remove '..' segments; paths must stay inside repo_root",
	ReasonSymlinkEscape:    "the symlink target resolves outside repo_root",
	ReasonAbsoluteOutside:  "absolute paths must resolve inside repo_root",
	ReasonDenylisted:       "this path matches a denylist pattern and cannot be read",
	ReasonFileTooLarge:     "reduce the requested file or raise max_file_bytes",
	ReasonRangeTooLarge:    "request a smaller line range or raise max_open_lines",
	ReasonResponseTooLarge: "narrow the request; the response would exceed max_total_bytes_per_response",
}

// Blocked describes a rejected path access. It never carries file contents.
type Blocked struct {
	Reason Reason
	Hint   string
}

func (b *Blocked) Error() string {
	return fmt.Sprintf("%s: %s", b.Reason, b.Hint)
}

func blocked(reason Reason) *Blocked {
	return &Blocked{Reason: reason, Hint: hints[reason]}
}

// Limits bounds every read mediated by the Sandbox.
type Limits struct {
	MaxFileBytes              int64
	MaxOpenLines               int
	MaxTotalBytesPerResponse   int64
}

// DefaultLimits returns the built-in hard caps used when a repo's config
// doesn't override them.
func DefaultLimits() Limits {
	return Limits{
		MaxFileBytes:             4 * 1024 * 1024,
		MaxOpenLines:             2000,
		MaxTotalBytesPerResponse: 1024 * 1024,
	}
}

// DefaultDenylistGlobs is the default set of patterns that are never readable.
func DefaultDenylistGlobs() []string {
	return []string{
		".env",
		"*.pem",
		"*.key",
		"*.pfx",
		"*.p12",
		"id_rsa*",
		"**/secrets.*",
		"**/.git/**",
	}
}

// Sandbox gates all filesystem access under a single canonical root.
type Sandbox struct {
	root     string
	denylist []string
	limits   Limits
}

// New creates a Sandbox rooted at root. root must already be an absolute,
// existing directory; it is resolved through symlinks once at construction
// so repo_root itself is allowed to be a symlink.
func New(root string, denylist []string, limits Limits) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve repo_root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve repo_root symlinks: %w", err)
	}
	return &Sandbox{
		root:     normalizeSeparators(resolved),
		denylist: denylist,
		limits:   limits,
	}, nil
}

// Root returns the canonical repo_root.
func (s *Sandbox) Root() string { return s.root }

// Limits returns the configured limits.
func (s *Sandbox) Limits() Limits { return s.limits }

// Resolve validates an incoming repo-relative or absolute path string and
// returns either the canonical absolute path (guaranteed to lie inside
// repo_root) or a typed Blocked reason. Rules are applied in spec order and
// short-circuit on the first violation.
func (s *Sandbox) Resolve(input string) (string, *Blocked) {
	norm := normalizeSeparators(input)

	// Rule 1: reject ".." or empty segments after normalization. The empty
	// first segment of an absolute path and the empty last segment left by a
	// trailing slash are not path segments and are allowed.
	segs := strings.Split(norm, "/")
	for i, seg := range segs {
		if seg == ".." || (seg == "" && i > 0 && i < len(segs)-1) {
			return "", blocked(ReasonPathTraversal)
		}
	}

	wasAbsolute := filepath.IsAbs(norm) || hasWindowsDrivePrefix(norm)

	var candidate string
	if wasAbsolute {
		candidate = norm
	} else {
		candidate = filepath.Join(s.root, norm)
	}
	candidate = filepath.Clean(candidate)

	// Rule 3: reject absolute inputs whose resolved target is outside root,
	// checked before symlink resolution since the unresolved target already
	// proves intent.
	if wasAbsolute && !s.isUnder(candidate) {
		return "", blocked(ReasonAbsoluteOutside)
	}

	// Rule 2: fully resolve symlinks; reject if the resolved target escapes root.
	resolved, err := resolveExisting(candidate)
	if err != nil {
		// Path may not exist yet (e.g. a write target); fall back to the
		// cleaned, unresolved candidate but still enforce the root check.
		resolved = candidate
	}
	resolved = normalizeSeparators(resolved)
	if !s.isUnder(resolved) {
		return "", blocked(ReasonSymlinkEscape)
	}

	// Rule 4: denylist, applied to the resolved path.
	rel, _ := filepath.Rel(s.root, resolved)
	rel = normalizeSeparators(rel)
	if s.isDenylisted(rel) {
		return "", blocked(ReasonDenylisted)
	}

	return resolved, nil
}

// CheckFileSize enforces max_file_bytes for a read of size bytes.
func (s *Sandbox) CheckFileSize(size int64) *Blocked {
	if size > s.limits.MaxFileBytes {
		return blocked(ReasonFileTooLarge)
	}
	return nil
}

// CheckLineRange enforces max_open_lines for a requested [start, end] range.
func (s *Sandbox) CheckLineRange(start, end int) *Blocked {
	if end >= start && end-start+1 > s.limits.MaxOpenLines {
		return blocked(ReasonRangeTooLarge)
	}
	return nil
}

// CheckResponseSize enforces max_total_bytes_per_response.
func (s *Sandbox) CheckResponseSize(size int64) *Blocked {
	if size > s.limits.MaxTotalBytesPerResponse {
		return blocked(ReasonResponseTooLarge)
	}
	return nil
}

// isUnder reports whether p (already cleaned, forward-slash, absolute-ish)
// lies inside s.root, matching exactly or as a '/'-delimited descendant.
func (s *Sandbox) isUnder(p string) bool {
	if p == s.root {
		return true
	}
	return strings.HasPrefix(p, s.root+"/")
}

func (s *Sandbox) isDenylisted(rel string) bool {
	for _, pattern := range s.denylist {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// Also match the basename for simple patterns like ".env" or "*.pem"
		// against nested paths (denylist applies regardless of directory).
		if ok, _ := doublestar.Match(pattern, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}

// resolveExisting resolves symlinks along the longest existing prefix of p,
// then rejoins any trailing components that do not yet exist on disk.
func resolveExisting(p string) (string, error) {
	if _, err := os.Lstat(p); err == nil {
		return filepath.EvalSymlinks(p)
	}
	dir, base := filepath.Split(strings.TrimSuffix(p, "/"))
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" || dir == p {
		return p, os.ErrNotExist
	}
	resolvedDir, err := resolveExisting(dir)
	if err != nil {
		return filepath.Join(dir, base), err
	}
	return filepath.Join(resolvedDir, base), nil
}

func normalizeSeparators(p string) string {
	return filepath.ToSlash(p)
}

func hasWindowsDrivePrefix(p string) bool {
	return len(p) >= 2 && p[1] == ':' && ((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

// SortedPaths returns paths sorted lexicographically by normalized form, as
// required for deterministic listing output.
func SortedPaths(paths []string) []string {
	out := make([]string, len(paths))
	copy(out, paths)
	sort.Strings(out)
	return out
}
