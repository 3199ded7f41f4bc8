package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrExtraction wraps every failure to open or parse a PDF.
	ErrExtraction = errors.New("pdf extraction failed")
	// ErrQueryEmbedding is returned when the question itself could not be embedded.
	ErrQueryEmbedding = errors.New("failed to generate query embedding")
	// ErrNoMatches is returned when retrieval finds nothing to answer from.
	ErrNoMatches = errors.New("no matches found")
	// ErrEmptyQuery is returned for blank questions.
	ErrEmptyQuery = errors.New("empty query")
	// ErrDimensionMismatch is returned by stores that know their vector size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// PageRecord is the cleaned text of one PDF page.
type PageRecord struct {
	Index   int
	Content string
}

// Document is an extracted PDF.
type Document struct {
	ID    string
	Name  string
	Pages []PageRecord
}

// Chunk is the unit of embedding: the normalized text of one page.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string
	Page       int
	Text       string
}

// Payload is the metadata stored next to each vector.
type Payload struct {
	Content    string `json:"content"`
	DocumentID string `json:"document_id,omitempty"`
	Source     string `json:"source,omitempty"`
	Page       int    `json:"page"`
}

// IndexEntry is a single record written to a vector store.
type IndexEntry struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Match is one query result.
type Match struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

// SkippedChunk records a chunk that did not make it into the store.
type SkippedChunk struct {
	ChunkID string `json:"chunk_id"`
	Page    int    `json:"page"`
	Reason  string `json:"reason"`
}

// IngestReport describes the outcome of one ingestion run.
type IngestReport struct {
	DocumentID string         `json:"document_id"`
	Source     string         `json:"source"`
	Pages      int            `json:"pages"`
	Upserted   int            `json:"upserted"`
	Skipped    []SkippedChunk `json:"skipped,omitempty"`
	Failed     []SkippedChunk `json:"failed,omitempty"`
}

// Message is the single user-facing success line for a completed run.
func (r *IngestReport) Message() string {
	msg := fmt.Sprintf("PDF processed and data stored: %d of %d pages indexed", r.Upserted, r.Pages)
	if n := len(r.Skipped) + len(r.Failed); n > 0 {
		msg += fmt.Sprintf(" (%d skipped)", n)
	}
	return msg + "."
}

// Progress is emitted after each chunk during ingestion.
type Progress struct {
	Done  int
	Total int
	Page  int
	// Err is non-nil when this chunk was skipped.
	Err error
}

// Answer is the result of the answering flow.
type Answer struct {
	Query   string  `json:"query"`
	Context string  `json:"context"`
	Text    string  `json:"text"`
	Matches []Match `json:"matches"`
	// Fallback is set when generation failed and Text holds the fixed fallback.
	Fallback bool `json:"fallback"`
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists entries and supports nearest-neighbour queries.
type VectorStore interface {
	Upsert(ctx context.Context, entry IndexEntry) error
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Clear(ctx context.Context) error
	Close() error
}

// Generator produces a natural-language answer from a query and its context.
type Generator interface {
	Name() string
	Generate(ctx context.Context, query, retrieved string) (string, error)
}

// Extractor turns PDF input into per-page records.
type Extractor interface {
	ExtractFile(path string) (*Document, error)
	ExtractBytes(name string, content []byte) (*Document, error)
}

// Chunker turns an extracted document into chunks ready for embedding.
type Chunker interface {
	Chunk(document *Document) []Chunk
}
