package bm25

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no cgo)
)

// Store persists chunk postings and corpus statistics so the BM25 Engine
// can score without re-tokenizing the whole repo on every query. Scoring
// math itself lives in scorer.go — this is storage only, deliberately not
// an FTS5 virtual table, since the fixed k1/b constants and exact
// tie-break order can't be delegated to a black-box ranking function.
type Store struct {
	db *sql.DB
}

// Open creates or opens the postings database at path. An empty path
// opens an in-memory database, used by tests.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open bm25 store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		chunk_id   TEXT PRIMARY KEY,
		path       TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line   INTEGER NOT NULL,
		length     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);

	CREATE TABLE IF NOT EXISTS postings (
		term     TEXT NOT NULL,
		chunk_id TEXT NOT NULL REFERENCES documents(chunk_id) ON DELETE CASCADE,
		tf       INTEGER NOT NULL,
		PRIMARY KEY (term, chunk_id)
	);
	CREATE INDEX IF NOT EXISTS idx_postings_term ON postings(term);

	CREATE TABLE IF NOT EXISTS corpus_stats (
		id             INTEGER PRIMARY KEY CHECK (id = 1),
		total_docs     INTEGER NOT NULL DEFAULT 0,
		total_length   INTEGER NOT NULL DEFAULT 0
	);
	INSERT OR IGNORE INTO corpus_stats (id, total_docs, total_length) VALUES (1, 0, 0);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// PutDocument inserts or replaces one document's postings, keeping
// corpus_stats consistent: it first removes any prior postings/length
// contribution for chunkID, then adds the new ones.
func (s *Store) PutDocument(ctx context.Context, chunkID, path string, startLine, endLine int, termFreq map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var priorLength sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT length FROM documents WHERE chunk_id = ?`, chunkID).Scan(&priorLength); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("lookup prior document: %w", err)
	}

	isNew := !priorLength.Valid
	if _, err := tx.ExecContext(ctx, `DELETE FROM postings WHERE chunk_id = ?`, chunkID); err != nil {
		return fmt.Errorf("clear postings: %w", err)
	}

	length := 0
	for _, tf := range termFreq {
		length += tf
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (chunk_id, path, start_line, end_line, length)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(chunk_id) DO UPDATE SET path=excluded.path, start_line=excluded.start_line,
		   end_line=excluded.end_line, length=excluded.length`,
		chunkID, path, startLine, endLine, length); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO postings (term, chunk_id, tf) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare postings insert: %w", err)
	}
	defer stmt.Close()

	for term, tf := range termFreq {
		if _, err := stmt.ExecContext(ctx, term, chunkID, tf); err != nil {
			return fmt.Errorf("insert posting %q: %w", term, err)
		}
	}

	lengthDelta := int64(length)
	docDelta := int64(0)
	if isNew {
		docDelta = 1
	} else {
		lengthDelta -= priorLength.Int64
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE corpus_stats SET total_docs = total_docs + ?, total_length = total_length + ? WHERE id = 1`,
		docDelta, lengthDelta); err != nil {
		return fmt.Errorf("update corpus stats: %w", err)
	}

	return tx.Commit()
}

// DeleteDocument removes a chunk's postings and adjusts corpus_stats.
func (s *Store) DeleteDocument(ctx context.Context, chunkID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var length int64
	err = tx.QueryRowContext(ctx, `SELECT length FROM documents WHERE chunk_id = ?`, chunkID).Scan(&length)
	if err == sql.ErrNoRows {
		return tx.Commit()
	}
	if err != nil {
		return fmt.Errorf("lookup document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE chunk_id = ?`, chunkID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE corpus_stats SET total_docs = total_docs - 1, total_length = total_length - ? WHERE id = 1`,
		length); err != nil {
		return fmt.Errorf("update corpus stats: %w", err)
	}

	return tx.Commit()
}

// DeleteByPath removes every chunk belonging to path, used when Discovery
// no longer reports the file.
func (s *Store) DeleteByPath(ctx context.Context, path string) error {
	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id FROM documents WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("list chunks for path: %w", err)
	}
	var chunkIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		chunkIDs = append(chunkIDs, id)
	}
	rows.Close()

	for _, id := range chunkIDs {
		if err := s.DeleteDocument(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// CorpusStats loads the current global statistics.
func (s *Store) CorpusStats(ctx context.Context) (CorpusStats, error) {
	var totalDocs, totalLength int64
	err := s.db.QueryRowContext(ctx, `SELECT total_docs, total_length FROM corpus_stats WHERE id = 1`).
		Scan(&totalDocs, &totalLength)
	if err != nil {
		return CorpusStats{}, fmt.Errorf("load corpus stats: %w", err)
	}

	avg := 0.0
	if totalDocs > 0 {
		avg = float64(totalLength) / float64(totalDocs)
	}

	docFreq, err := s.documentFrequencies(ctx)
	if err != nil {
		return CorpusStats{}, err
	}

	return CorpusStats{
		DocFreq:      docFreq,
		TotalDocs:    int(totalDocs),
		AvgDocLength: avg,
	}, nil
}

func (s *Store) documentFrequencies(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT term, COUNT(DISTINCT chunk_id) FROM postings GROUP BY term`)
	if err != nil {
		return nil, fmt.Errorf("compute document frequencies: %w", err)
	}
	defer rows.Close()

	freq := make(map[string]int)
	for rows.Next() {
		var term string
		var count int
		if err := rows.Scan(&term, &count); err != nil {
			return nil, err
		}
		freq[term] = count
	}
	return freq, rows.Err()
}

// DocsMatchingAnyTerm returns the DocStats for every chunk with at least
// one posting among terms, restricted to the given path prefix/glob when
// non-empty (caller applies glob filtering; prefix is pushed down to SQL).
func (s *Store) DocsMatchingAnyTerm(ctx context.Context, terms []string, pathPrefix string) ([]DocStats, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(terms))
	args := make([]any, 0, len(terms)+1)
	for i, t := range terms {
		placeholders[i] = "?"
		args = append(args, t)
	}

	query := fmt.Sprintf(`
		SELECT d.chunk_id, d.path, d.start_line, d.end_line, d.length, p.term, p.tf
		FROM documents d
		JOIN postings p ON p.chunk_id = d.chunk_id
		WHERE p.term IN (%s)`, strings.Join(placeholders, ","))

	if pathPrefix != "" {
		query += ` AND d.path LIKE ? || '%'`
		args = append(args, pathPrefix)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query matching docs: %w", err)
	}
	defer rows.Close()

	byChunk := make(map[string]*DocStats)
	var order []string
	for rows.Next() {
		var chunkID, path, term string
		var startLine, endLine, length, tf int
		if err := rows.Scan(&chunkID, &path, &startLine, &endLine, &length, &term, &tf); err != nil {
			return nil, err
		}
		doc, ok := byChunk[chunkID]
		if !ok {
			doc = &DocStats{ChunkID: chunkID, Path: path, StartLine: startLine, EndLine: endLine, Length: length, TermFreq: map[string]int{}}
			byChunk[chunkID] = doc
			order = append(order, chunkID)
		}
		doc.TermFreq[term] = tf
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]DocStats, 0, len(order))
	for _, id := range order {
		out = append(out, *byChunk[id])
	}
	return out, nil
}
