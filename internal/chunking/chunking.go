// Package chunking cuts file content into fixed, overlapping line windows.
// Chunking is never influenced by language adapters: every file, regardless
// of extension, is windowed the same way.
package chunking

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Chunk is one fixed line-window slice of a file.
type Chunk struct {
	ChunkID   string
	Path      string
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	Text      string
}

// Params are the chunking parameters that participate in chunk_id
// derivation; bumping Version forces a full re-chunk on next refresh.
type Params struct {
	Window  int
	Overlap int
	Version int
}

// DefaultParams returns the default window/overlap used when a repo's
// config doesn't override them.
func DefaultParams() Params {
	return Params{Window: 200, Overlap: 30, Version: 1}
}

// ChunkFile splits content into fixed, overlapping line windows. Lines are
// counted after normalizing CRLF/CR to LF. The trailing partial window
// becomes a final, shorter chunk.
func ChunkFile(path string, content []byte, params Params) []Chunk {
	normalized := normalizeNewlines(string(content))
	if normalized == "" {
		return nil
	}

	lines := strings.Split(normalized, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil
	}

	window := params.Window
	if window <= 0 {
		window = 200
	}
	overlap := params.Overlap
	if overlap < 0 || overlap >= window {
		overlap = 0
	}
	stride := window - overlap

	var chunks []Chunk
	for start := 0; start < len(lines); start += stride {
		end := start + window
		if end > len(lines) {
			end = len(lines)
		}

		startLine := start + 1
		endLine := end
		text := strings.Join(lines[start:end], "\n")

		chunks = append(chunks, Chunk{
			ChunkID:   chunkID(path, startLine, endLine, params),
			Path:      path,
			StartLine: startLine,
			EndLine:   endLine,
			Text:      text,
		})

		if end >= len(lines) {
			break
		}
	}

	return chunks
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

// chunkID derives a stable identifier from path, line range, and chunking
// parameters. Same file + same range + same parameters always yields the
// same ID; bumping Version or window/overlap invalidates every chunk_id in
// the repo.
func chunkID(path string, startLine, endLine int, params Params) string {
	input := fmt.Sprintf("%s:%d:%d:%d:%d:%d", path, startLine, endLine, params.Window, params.Overlap, params.Version)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}
