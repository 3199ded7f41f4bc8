// Package pinecone is a minimal client for the Pinecone data-plane REST API.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"pdfqa/internal/domain"
	"pdfqa/internal/vectorstore"
)

const apiVersion = "2024-07"

// Store talks to one Pinecone index through its host URL.
type Store struct {
	host      string
	apiKeyEnv string
	namespace string
	client    *http.Client
}

type Config struct {
	// Host is the index host, e.g. https://test-abc123.svc.us-east-1.pinecone.io
	Host      string
	APIKeyEnv string
	Namespace string
	Timeout   time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "PINECONE_API_KEY"
	}
	host := strings.TrimRight(cfg.Host, "/")
	if host != "" && !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return &Store{
		host:      host,
		apiKeyEnv: cfg.APIKeyEnv,
		namespace: cfg.Namespace,
		client:    &http.Client{Timeout: timeout},
	}
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata domain.Payload `json:"metadata"`
}

func (s *Store) Upsert(ctx context.Context, entry domain.IndexEntry) error {
	body := map[string]any{
		"vectors": []vector{{ID: entry.ID, Values: entry.Vector, Metadata: entry.Payload}},
	}
	if s.namespace != "" {
		body["namespace"] = s.namespace
	}
	return s.post(ctx, "/vectors/upsert", body, nil)
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}
	if s.namespace != "" {
		body["namespace"] = s.namespace
	}
	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata domain.Payload `json:"metadata"`
		} `json:"matches"`
	}
	if err := s.post(ctx, "/query", body, &resp); err != nil {
		return nil, err
	}
	matches := make([]domain.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, domain.Match{ID: m.ID, Score: m.Score, Payload: m.Metadata})
	}
	return matches, nil
}

// Clear deletes every vector in the configured namespace.
func (s *Store) Clear(ctx context.Context) error {
	body := map[string]any{"deleteAll": true}
	if s.namespace != "" {
		body["namespace"] = s.namespace
	}
	return s.post(ctx, "/vectors/delete", body, nil)
}

func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) post(ctx context.Context, path string, body, out any) error {
	if s.host == "" {
		return errors.New("pinecone index host not configured")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", os.Getenv(s.apiKeyEnv))
	req.Header.Set("X-Pinecone-API-Version", apiVersion)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("pinecone POST %s failed: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
