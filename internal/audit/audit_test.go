package audit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_ThenReadReturnsNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Record(Event{TimestampUnix: 100, RequestID: "1", Tool: "repo.status", OK: true}))
	require.NoError(t, log.Record(Event{TimestampUnix: 200, RequestID: "2", Tool: "repo.search", OK: true}))

	events, err := log.Read(0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2", events[0].RequestID)
	assert.Equal(t, "1", events[1].RequestID)
}

func TestRead_FiltersBySince(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Record(Event{TimestampUnix: 100, RequestID: "old"}))
	require.NoError(t, log.Record(Event{TimestampUnix: 300, RequestID: "new"}))

	events, err := log.Read(200, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].RequestID)
}

func TestRead_RespectsLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Record(Event{TimestampUnix: int64(i), RequestID: "x"}))
	}

	events, err := log.Read(0, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestRecord_NeverCarriesFileContentsField(t *testing.T) {
	e := Event{TimestampUnix: 1, RequestID: "1", Tool: "repo.open_file", OK: true, Metadata: map[string]string{"path": "a.go"}}
	assert.NotContains(t, e.Metadata, "content")
	assert.NotContains(t, e.Metadata, "text")
}
