package cliout

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_StatusVariants(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Success("indexed 3 files")
	w.Warning("schema mismatch")
	w.Failure("sandbox init failed")

	out := buf.String()
	assert.Contains(t, out, "✓ indexed 3 files")
	assert.Contains(t, out, "! schema mismatch")
	assert.Contains(t, out, "✗ sandbox init failed")
}
