package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	cfg := ServeConfig(dir)

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	defer cleanup()

	logger.Info("hello", "key", "value")

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	require.True(t, scanner.Scan())

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &parsed))
	assert.Equal(t, "hello", parsed["msg"])
	assert.Equal(t, "value", parsed["key"])
}

func TestServeConfig_NeverWritesStderr(t *testing.T) {
	cfg := ServeConfig(t.TempDir())
	assert.False(t, cfg.WriteToStderr)
}

func TestRotatingWriter_RotatesAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	w, err := NewRotatingWriter(path, 0, 2) // maxSizeMB=0 rotates on first write beyond 0 bytes
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("first line\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second line\n"))
	require.NoError(t, err)

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "expected rotation to produce server.log.1")
}
