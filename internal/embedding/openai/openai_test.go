package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbed_openAIShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path: %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["model"] != "test-model" || body["input"] != "hello" {
			t.Errorf("body: %v", body)
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "test-model", APIKeyEnv: "PDFQA_TEST_UNSET_KEY"})
	v, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 3 || v[1] != 0.2 {
		t.Errorf("got %v", v)
	}
}

func TestEmbed_ollamaShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[1,2]}`))
	}))
	defer srv.Close()

	v, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "PDFQA_TEST_UNSET_KEY"}).Embed(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 2 {
		t.Errorf("got %v", v)
	}
}

func TestEmbed_bearerHeader(t *testing.T) {
	t.Setenv("PDFQA_TEST_KEY", "secret")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization: %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1]}]}`))
	}))
	defer srv.Close()

	if _, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "PDFQA_TEST_KEY"}).Embed(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
}

func TestEmbed_errors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()
		if _, err := NewClient(Config{BaseURL: srv.URL}).Embed(context.Background(), "x"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("empty body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		}))
		defer srv.Close()
		if _, err := NewClient(Config{BaseURL: srv.URL}).Embed(context.Background(), "x"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("missing key for remote endpoint", func(t *testing.T) {
		c := NewClient(Config{BaseURL: "https://api.example.invalid/v1", APIKeyEnv: "PDFQA_TEST_UNSET_KEY"})
		if _, err := c.Embed(context.Background(), "x"); err == nil {
			t.Error("expected missing key error")
		}
	})
}
