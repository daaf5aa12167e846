// Package audit implements the append-only audit log: one JSON line per
// request, flushed to disk immediately with the same append+sync
// discipline as the rotating log writer, but deliberately never
// rotated — audit history is retained whole.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Event is one audit record. It never carries file contents, secrets, or
// raw prompt text — only the metadata needed to reconstruct what
// happened.
type Event struct {
	TimestampUnix int64             `json:"timestamp"`
	RequestID     string            `json:"request_id"`
	Tool          string            `json:"tool"`
	OK            bool              `json:"ok"`
	Blocked       bool              `json:"blocked"`
	ErrorCode     string            `json:"error_code,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Log is an append-only JSONL audit writer.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates or appends to the audit log at path, creating parent
// directories as needed.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Log{file: f}, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Record appends event as one JSON line, synced before returning so a
// crash immediately after Record never loses the entry.
func (l *Log) Record(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return l.file.Sync()
}

// Read returns events with TimestampUnix >= since (0 for all), most
// recent first, truncated to limit (0 for unbounded).
func (l *Log) Read(since int64, limit int) ([]Event, error) {
	l.mu.Lock()
	path := l.file.Name()
	l.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log for read: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if e.TimestampUnix >= since {
			events = append(events, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}
