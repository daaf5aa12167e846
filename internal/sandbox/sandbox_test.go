package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox(t *testing.T) (*Sandbox, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.go"), []byte("package a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("SECRET=1"), 0o644))

	sb, err := New(root, DefaultDenylistGlobs(), DefaultLimits())
	require.NoError(t, err)
	return sb, root
}

func TestResolve_AllowsPathInsideRoot(t *testing.T) {
	sb, _ := newTestSandbox(t)

	resolved, blocked := sb.Resolve("src/a.go")
	require.Nil(t, blocked)
	assert.True(t, sb.isUnder(resolved))
}

func TestResolve_RejectsTraversal(t *testing.T) {
	sb, _ := newTestSandbox(t)

	_, blocked := sb.Resolve("../etc/passwd")
	require.NotNil(t, blocked)
	assert.Equal(t, ReasonPathTraversal, blocked.Reason)
}

func TestResolve_RejectsAbsoluteOutsideRoot(t *testing.T) {
	sb, _ := newTestSandbox(t)

	_, blocked := sb.Resolve("/etc/passwd")
	require.NotNil(t, blocked)
	assert.Equal(t, ReasonAbsoluteOutside, blocked.Reason)
}

func TestResolve_RejectsDenylistedFile(t *testing.T) {
	sb, _ := newTestSandbox(t)

	_, blocked := sb.Resolve(".env")
	require.NotNil(t, blocked)
	assert.Equal(t, ReasonDenylisted, blocked.Reason)
}

func TestResolve_RejectsSymlinkEscape(t *testing.T) {
	sb, root := newTestSandbox(t)

	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644))
	link := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink(outside, link))

	_, blocked := sb.Resolve("escape/secret.txt")
	require.NotNil(t, blocked)
	assert.Equal(t, ReasonSymlinkEscape, blocked.Reason)
}

func TestCheckFileSize_BoundaryAtLimit(t *testing.T) {
	sb, _ := newTestSandbox(t)

	assert.Nil(t, sb.CheckFileSize(sb.Limits().MaxFileBytes))
	assert.NotNil(t, sb.CheckFileSize(sb.Limits().MaxFileBytes+1))
}

func TestCheckLineRange_BoundaryAtLimit(t *testing.T) {
	sb, _ := newTestSandbox(t)

	max := sb.Limits().MaxOpenLines
	assert.Nil(t, sb.CheckLineRange(1, max))
	assert.NotNil(t, sb.CheckLineRange(1, max+1))
}

func TestResolve_DenylistedEvenWhenExplicitlyRequestedInsideRoot(t *testing.T) {
	sb, _ := newTestSandbox(t)

	_, blocked := sb.Resolve("./.env")
	require.NotNil(t, blocked)
	assert.Equal(t, ReasonDenylisted, blocked.Reason)
}
