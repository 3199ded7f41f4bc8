// Package sqlite provides a local, file-backed vector store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"pdfqa/internal/domain"
	"pdfqa/internal/vectorstore"
)

// Store keeps entries in SQLite and ranks them by cosine similarity in Go.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		document_id TEXT,
		source TEXT,
		page INTEGER NOT NULL,
		content TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		vector BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_seq ON entries(seq);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *Store) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dimension FROM entries LIMIT 1`).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return dim, err
}

// Upsert inserts the entry or replaces the one with the same id.
func (s *Store) Upsert(ctx context.Context, entry domain.IndexEntry) error {
	if len(entry.Vector) == 0 {
		return fmt.Errorf("entry %s: empty vector", entry.ID)
	}
	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if dim != 0 && dim != len(entry.Vector) {
		return fmt.Errorf("%w: store has %d, entry %s has %d", domain.ErrDimensionMismatch, dim, entry.ID, len(entry.Vector))
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entries (id, seq, document_id, source, page, content, dimension, vector)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM entries), ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   document_id = excluded.document_id,
		   source = excluded.source,
		   page = excluded.page,
		   content = excluded.content,
		   dimension = excluded.dimension,
		   vector = excluded.vector`,
		entry.ID, entry.Payload.DocumentID, entry.Payload.Source, entry.Payload.Page,
		entry.Payload.Content, len(entry.Vector), encodeVector(entry.Vector),
	)
	return err
}

// Query scans every entry and returns the topK most similar.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, source, page, content, vector FROM entries ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var m domain.Match
		var docID, source sql.NullString
		var blob []byte
		if err := rows.Scan(&m.ID, &docID, &source, &m.Payload.Page, &m.Payload.Content, &blob); err != nil {
			return nil, err
		}
		v := decodeVector(blob)
		if len(v) != len(vector) {
			return nil, fmt.Errorf("%w: store has %d, query has %d", domain.ErrDimensionMismatch, len(v), len(vector))
		}
		m.Payload.DocumentID = docID.String
		m.Payload.Source = source.String
		m.Score = vectorstore.Cosine(v, vector)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vectorstore.TopK(matches, topK), nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entries`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
