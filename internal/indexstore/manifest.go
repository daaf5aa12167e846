package indexstore

// SchemaVersion is bumped whenever the on-disk manifest/file/chunk table
// layout changes incompatibly, forcing a full reindex.
const SchemaVersion = 1

// Manifest is the top-level persisted index descriptor.
type Manifest struct {
	SchemaVersion    int    `json:"schema_version"`
	ChunkWindow      int    `json:"chunk_window"`
	ChunkOverlap     int    `json:"chunk_overlap"`
	ChunkingVersion  int    `json:"chunking_version"`
	LastRefreshUnix  int64  `json:"last_refresh_unix"`
	RepoRoot         string `json:"repo_root"`
}

// FileRecord is one persisted row of the file table.
type FileRecord struct {
	Path        string   `json:"path"`
	SizeBytes   int64    `json:"size_bytes"`
	ModTimeUnix int64    `json:"mtime_unix"`
	ContentHash string   `json:"content_hash"`
	Extension   string   `json:"extension"`
	ChunkIDs    []string `json:"chunk_ids"`
}

// ChunkRecord is one persisted row of the chunk table.
type ChunkRecord struct {
	ChunkID   string `json:"chunk_id"`
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// RefreshResult reports what a refresh changed.
type RefreshResult struct {
	Added      int   `json:"added"`
	Updated    int   `json:"updated"`
	Removed    int   `json:"removed"`
	DurationMs int64 `json:"duration_ms"`
	TimestampUnix int64 `json:"timestamp_unix"`
}
