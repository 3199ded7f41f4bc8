package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pdfqa/internal/domain"
	"pdfqa/internal/vectorstore"
)

// pointNamespace scopes the UUIDv5 point ids derived from entry ids.
var pointNamespace = uuid.MustParse("6f1c3a52-4f0b-4a53-9a2e-0d3c3f2b8e71")

// Store is a minimal REST client to Qdrant.
// It uses cosine distance and creates the collection on the first upsert.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
	logger     *zap.Logger

	mu    sync.Mutex
	ready bool
}

type Config struct {
	URL        string
	APIKeyEnv  string
	Collection string
	Timeout    time.Duration
}

func NewStore(cfg Config, logger *zap.Logger) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "pdfqa"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     os.Getenv(cfg.APIKeyEnv),
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// PointID maps an entry id to the UUID Qdrant stores it under.
func PointID(entryID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(entryID)).String()
}

func (s *Store) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	if status == http.StatusNotFound {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		if _, err := s.do(ctx, http.MethodPut, s.collectionURL(), body, nil); err != nil {
			return err
		}
		s.logger.Info("created qdrant collection", zap.String("collection", s.collection), zap.Int("dimension", dimension))
	}
	s.ready = true
	return nil
}

func (s *Store) Upsert(ctx context.Context, entry domain.IndexEntry) error {
	if err := s.ensureCollection(ctx, len(entry.Vector)); err != nil {
		return err
	}
	point := map[string]any{
		"id":     PointID(entry.ID),
		"vector": entry.Vector,
		"payload": map[string]any{
			"entry_id":    entry.ID,
			"content":     entry.Payload.Content,
			"document_id": entry.Payload.DocumentID,
			"source":      entry.Payload.Source,
			"page":        entry.Payload.Page,
		},
	}
	body := map[string]any{"points": []any{point}}
	_, err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil)
	return err
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				EntryID string `json:"entry_id"`
				domain.Payload
			} `json:"payload"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp)
	if status == http.StatusNotFound {
		// nothing has been ingested yet
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, domain.Match{ID: r.Payload.EntryID, Score: r.Score, Payload: r.Payload.Payload})
	}
	return matches, nil
}

// Clear drops the collection; the next upsert recreates it.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	s.ready = false
	return nil
}

func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

// do sends a JSON request and decodes the JSON response into out when non-nil.
// The status code is returned even when err is non-nil.
func (s *Store) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}
