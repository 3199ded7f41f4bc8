package memory

import (
	"context"
	"fmt"
	"sync"

	"pdfqa/internal/domain"
	"pdfqa/internal/vectorstore"
)

// Store is a simple in-memory vector store using brute-force cosine similarity.
type Store struct {
	mu        sync.RWMutex
	dimension int
	ids       []string
	entries   map[string]domain.IndexEntry
}

func NewStore() *Store { return &Store{entries: make(map[string]domain.IndexEntry)} }

func (s *Store) Upsert(ctx context.Context, entry domain.IndexEntry) error {
	if len(entry.Vector) == 0 {
		return fmt.Errorf("entry %s: empty vector", entry.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = len(entry.Vector)
	} else if len(entry.Vector) != s.dimension {
		return fmt.Errorf("%w: store has %d, entry %s has %d", domain.ErrDimensionMismatch, s.dimension, entry.ID, len(entry.Vector))
	}
	if _, ok := s.entries[entry.ID]; !ok {
		s.ids = append(s.ids, entry.ID)
	}
	entry.Vector = append([]float32(nil), entry.Vector...)
	s.entries[entry.ID] = entry
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	if len(s.ids) == 0 {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: store has %d, query has %d", domain.ErrDimensionMismatch, s.dimension, len(vector))
	}
	matches := make([]domain.Match, 0, len(s.ids))
	for _, id := range s.ids {
		e := s.entries[id]
		matches = append(matches, domain.Match{ID: id, Score: vectorstore.Cosine(e.Vector, vector), Payload: e.Payload})
	}
	return vectorstore.TopK(matches, topK), nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = 0
	s.ids = nil
	s.entries = make(map[string]domain.IndexEntry)
	return nil
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

func (s *Store) Close() error { return nil }
