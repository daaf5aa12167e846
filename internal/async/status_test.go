package async

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIndexProgress(t *testing.T) {
	p := NewIndexProgress()

	require.NotNil(t, p)
	snap := p.Snapshot()
	assert.Equal(t, string(StatusIndexing), snap.Status)
	assert.Equal(t, string(StageScanning), snap.Stage)
	assert.Equal(t, 0, snap.FilesTotal)
	assert.Equal(t, 0, snap.FilesProcessed)
	assert.True(t, p.IsIndexing())
}

// TestIndexProgress_RefreshLifecycle walks the same stage sequence
// Refresher.Refresh drives a progress tracker through: scanning with an
// unknown total, chunking with every discovered file as the total (changed
// files are chunked and their chunk counts recorded in this stage),
// indexing while vanished files are removed, then ready.
func TestIndexProgress_RefreshLifecycle(t *testing.T) {
	p := NewIndexProgress()

	p.SetStage(StageScanning, 0)
	snap := p.Snapshot()
	assert.Equal(t, "scanning", snap.Stage)
	assert.Equal(t, 0, snap.FilesTotal)

	p.SetStage(StageChunking, 12)
	p.UpdateFiles(5)
	snap = p.Snapshot()
	assert.Equal(t, "chunking", snap.Stage)
	assert.Equal(t, 12, snap.FilesTotal)
	assert.Equal(t, 5, snap.FilesProcessed)
	assert.InDelta(t, 41.6, snap.ProgressPct, 0.1)

	p.UpdateFiles(12)
	p.SetChunksTotal(340)
	p.UpdateChunks(340)
	snap = p.Snapshot()
	assert.Equal(t, 12, snap.FilesProcessed)
	assert.Equal(t, 340, snap.ChunksTotal)
	assert.Equal(t, 340, snap.ChunksIndexed)

	p.SetStage(StageIndexing, 12)
	p.SetReady()
	snap = p.Snapshot()
	assert.Equal(t, "indexing", snap.Stage)
	assert.Equal(t, string(StatusReady), snap.Status)
	assert.False(t, p.IsIndexing())
}

func TestIndexProgress_SetError(t *testing.T) {
	p := NewIndexProgress()
	p.SetStage(StageChunking, 4)

	p.SetError("read repo-relative path outside root: sandbox blocked")

	snap := p.Snapshot()
	assert.Equal(t, string(StatusError), snap.Status)
	assert.Equal(t, "read repo-relative path outside root: sandbox blocked", snap.ErrorMessage)
	assert.False(t, p.IsIndexing())
}

func TestIndexProgress_ProgressPct(t *testing.T) {
	tests := []struct {
		name           string
		total          int
		processed      int
		wantProgressPc float64
	}{
		{name: "zero total returns zero", total: 0, processed: 0, wantProgressPc: 0.0},
		{name: "half complete", total: 100, processed: 50, wantProgressPc: 50.0},
		{name: "fully complete", total: 100, processed: 100, wantProgressPc: 100.0},
		{name: "partial progress", total: 1000, processed: 333, wantProgressPc: 33.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewIndexProgress()
			p.SetStage(StageChunking, tt.total)
			p.UpdateFiles(tt.processed)

			snap := p.Snapshot()
			assert.InDelta(t, tt.wantProgressPc, snap.ProgressPct, 0.1)
		})
	}
}

func TestIndexProgress_ElapsedSeconds(t *testing.T) {
	p := NewIndexProgress()

	time.Sleep(100 * time.Millisecond)

	snap := p.Snapshot()
	assert.GreaterOrEqual(t, snap.ElapsedSeconds, 0)
}

func TestIndexProgress_Snapshot_Immutable(t *testing.T) {
	p := NewIndexProgress()
	p.SetStage(StageChunking, 100)
	p.UpdateFiles(50)

	snap1 := p.Snapshot()
	p.UpdateFiles(75)
	snap2 := p.Snapshot()

	assert.Equal(t, 50, snap1.FilesProcessed)
	assert.Equal(t, 75, snap2.FilesProcessed)
}

// TestIndexProgress_ThreadSafe exercises the access pattern Refresh()
// actually uses: one errgroup worker per file calling UpdateFiles while
// Progress() is polled concurrently from another goroutine.
func TestIndexProgress_ThreadSafe(t *testing.T) {
	p := NewIndexProgress()
	p.SetStage(StageChunking, 100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)

		go func(n int) {
			defer wg.Done()
			p.UpdateFiles(n)
		}(i)

		go func() {
			defer wg.Done()
			_ = p.Snapshot()
			_ = p.IsIndexing()
		}()
	}

	wg.Wait()

	snap := p.Snapshot()
	assert.GreaterOrEqual(t, snap.FilesProcessed, 0)
	assert.LessOrEqual(t, snap.FilesProcessed, 99)
}

func TestIndexingStatus_Values(t *testing.T) {
	assert.Equal(t, "indexing", string(StatusIndexing))
	assert.Equal(t, "ready", string(StatusReady))
	assert.Equal(t, "error", string(StatusError))
}

func TestIndexingStage_Values(t *testing.T) {
	assert.Equal(t, "scanning", string(StageScanning))
	assert.Equal(t, "chunking", string(StageChunking))
	assert.Equal(t, "indexing", string(StageIndexing))
}
