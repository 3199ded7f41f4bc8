package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"pdfqa/internal/domain"
)

// fakeQdrant records the REST calls the store makes.
type fakeQdrant struct {
	mu        sync.Mutex
	exists    bool
	created   int
	points    []map[string]any
	searchReq map[string]any
	apiKey    string
}

func (f *fakeQdrant) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.apiKey = r.Header.Get("api-key")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/docs":
			if !f.exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"result":{}}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			f.exists = true
			f.created++
			_, _ = w.Write([]byte(`{"result":true}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			var body struct {
				Points []map[string]any `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.points = append(f.points, body.Points...)
			_, _ = w.Write([]byte(`{"result":{}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/collections/docs/points/search":
			if !f.exists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewDecoder(r.Body).Decode(&f.searchReq)
			_, _ = w.Write([]byte(`{"result":[
				{"id":"x","score":0.9,"payload":{"entry_id":"doc-0","content":"Total revenue: 100","document_id":"doc","source":"a.pdf","page":0}},
				{"id":"y","score":0.4,"payload":{"entry_id":"doc-1","content":"other","page":1}}
			]}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/collections/docs":
			f.exists = false
			_, _ = w.Write([]byte(`{"result":true}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	})
}

func TestStore_upsertCreatesCollectionOnce(t *testing.T) {
	t.Setenv("PDFQA_TEST_QDRANT_KEY", "k")
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	s := NewStore(Config{URL: srv.URL, Collection: "docs", APIKeyEnv: "PDFQA_TEST_QDRANT_KEY"}, zap.NewNop())
	ctx := context.Background()
	for i, id := range []string{"doc-0", "doc-1"} {
		e := domain.IndexEntry{ID: id, Vector: []float32{1, 0, 0}, Payload: domain.Payload{Content: "c", Page: i}}
		if err := s.Upsert(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	if fake.created != 1 {
		t.Errorf("collection created %d times", fake.created)
	}
	if len(fake.points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(fake.points))
	}
	if fake.points[0]["id"] != PointID("doc-0") {
		t.Errorf("point id: %v", fake.points[0]["id"])
	}
	payload := fake.points[0]["payload"].(map[string]any)
	if payload["entry_id"] != "doc-0" {
		t.Errorf("payload: %v", payload)
	}
	if fake.apiKey != "k" {
		t.Errorf("api-key header: %q", fake.apiKey)
	}
}

func TestStore_query(t *testing.T) {
	fake := &fakeQdrant{exists: true}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	s := NewStore(Config{URL: srv.URL, Collection: "docs"}, nil)
	got, err := s.Query(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
	if got[0].ID != "doc-0" || got[0].Payload.Content != "Total revenue: 100" || got[0].Payload.Source != "a.pdf" {
		t.Errorf("first match: %+v", got[0])
	}
	if got[0].Score < got[1].Score {
		t.Error("scores not descending")
	}
	if fake.searchReq["limit"].(float64) != 2 || fake.searchReq["with_payload"] != true {
		t.Errorf("search request: %v", fake.searchReq)
	}
}

func TestStore_queryMissingCollection(t *testing.T) {
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	got, err := NewStore(Config{URL: srv.URL, Collection: "docs"}, nil).Query(context.Background(), []float32{1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}
}

func TestStore_clearRecreates(t *testing.T) {
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	s := NewStore(Config{URL: srv.URL, Collection: "docs"}, nil)
	ctx := context.Background()
	e := domain.IndexEntry{ID: "a", Vector: []float32{1}, Payload: domain.Payload{Content: "c"}}
	_ = s.Upsert(ctx, e)
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	_ = s.Upsert(ctx, e)
	if fake.created != 2 {
		t.Errorf("expected collection recreated, created=%d", fake.created)
	}
}

func TestPointID(t *testing.T) {
	a := PointID("id-0")
	if a != PointID("id-0") {
		t.Error("not deterministic")
	}
	if a == PointID("id-1") {
		t.Error("collision")
	}
	if len(strings.Split(a, "-")) != 5 {
		t.Errorf("not a uuid: %s", a)
	}
}
