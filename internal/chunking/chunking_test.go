package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkFile_CoversFileWithOverlap(t *testing.T) {
	var lines []string
	for i := 1; i <= 450; i++ {
		lines = append(lines, "line")
	}
	content := strings.Join(lines, "\n")

	chunks := ChunkFile("a.go", []byte(content), Params{Window: 200, Overlap: 30, Version: 1})
	require.Len(t, chunks, 3)

	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 200, chunks[0].EndLine)
	assert.Equal(t, 171, chunks[1].StartLine)
	assert.Equal(t, 370, chunks[1].EndLine)
	assert.Equal(t, 341, chunks[2].StartLine)
	assert.Equal(t, 450, chunks[2].EndLine)
}

func TestChunkFile_LastChunkShorterThanWindow(t *testing.T) {
	content := strings.Repeat("x\n", 50)
	chunks := ChunkFile("b.go", []byte(content), Params{Window: 200, Overlap: 30, Version: 1})
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 50, chunks[0].EndLine)
}

func TestChunkFile_IDsAreStableAndDeterministic(t *testing.T) {
	content := []byte("a\nb\nc\n")
	params := Params{Window: 200, Overlap: 30, Version: 1}

	c1 := ChunkFile("x.go", content, params)
	c2 := ChunkFile("x.go", content, params)
	require.Len(t, c1, 1)
	require.Len(t, c2, 1)
	assert.Equal(t, c1[0].ChunkID, c2[0].ChunkID)
}

func TestChunkFile_VersionBumpChangesID(t *testing.T) {
	content := []byte("a\nb\nc\n")
	c1 := ChunkFile("x.go", content, Params{Window: 200, Overlap: 30, Version: 1})
	c2 := ChunkFile("x.go", content, Params{Window: 200, Overlap: 30, Version: 2})
	require.Len(t, c1, 1)
	require.Len(t, c2, 1)
	assert.NotEqual(t, c1[0].ChunkID, c2[0].ChunkID)
}

func TestChunkFile_EmptyContentProducesNoChunks(t *testing.T) {
	chunks := ChunkFile("empty.go", []byte(""), DefaultParams())
	assert.Empty(t, chunks)
}

func TestChunkFile_NormalizesCRLF(t *testing.T) {
	chunks := ChunkFile("crlf.go", []byte("a\r\nb\r\nc\r\n"), DefaultParams())
	require.Len(t, chunks, 1)
	assert.Equal(t, "a\nb\nc", chunks[0].Text)
}
