package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_missingFileReturnsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedder.Type != "gemini" || cfg.Generator.Type != "gemini" || cfg.VectorStore.Type != "sqlite" {
		t.Errorf("types: %+v", cfg)
	}
	if cfg.VectorStore.SQLite == nil || cfg.VectorStore.SQLite.Path != filepath.Join(home, ".local", "share", "pdfqa", "pdfqa.db") {
		t.Errorf("sqlite: %+v", cfg.VectorStore.SQLite)
	}
	if cfg.Gemini.APIKeyEnv != "GOOGLE_GENERATIVE_AI_KEY" {
		t.Errorf("gemini key env: %q", cfg.Gemini.APIKeyEnv)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Ingest.IDScheme != "document" {
		t.Errorf("retrieval/ingest: %+v %+v", cfg.Retrieval, cfg.Ingest)
	}
}

func TestLoad_yaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
embedder:
  type: hashing
generator:
  type: extractive
  instructions: "Also give reference table segments from context."
vector_store:
  type: pinecone
  pinecone:
    host: test-abc.svc.pinecone.io
ingest:
  id_scheme: positional
retrieval:
  top_k: 1
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedder.Hashing == nil || cfg.Embedder.Hashing.Dimension != 256 {
		t.Errorf("hashing defaults: %+v", cfg.Embedder.Hashing)
	}
	if cfg.VectorStore.Pinecone.APIKeyEnv != "PINECONE_API_KEY" || cfg.VectorStore.Pinecone.Host != "test-abc.svc.pinecone.io" {
		t.Errorf("pinecone: %+v", cfg.VectorStore.Pinecone)
	}
	if cfg.Ingest.IDScheme != "positional" || cfg.Retrieval.TopK != 1 {
		t.Errorf("ingest/retrieval: %+v %+v", cfg.Ingest, cfg.Retrieval)
	}
	if !strings.HasPrefix(cfg.Generator.Instructions, "Also give") {
		t.Errorf("instructions: %q", cfg.Generator.Instructions)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name, data, want string
	}{
		{"unknown embedder", "embedder:\n  type: bert\n", "unknown embedder"},
		{"unknown store", "vector_store:\n  type: milvus\n", "unknown vector store"},
		{"qdrant without url", "vector_store:\n  type: qdrant\n", "qdrant.url"},
		{"pinecone without host", "vector_store:\n  type: pinecone\n", "pinecone.host"},
		{"bad scheme", "ingest:\n  id_scheme: random\n", "unknown id scheme"},
		{"bad yaml", "embedder: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.VectorStore.SQLite.Path = "data/pdfqa.db"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.VectorStore.Type != "sqlite" || got.VectorStore.SQLite == nil || got.VectorStore.SQLite.Path != "data/pdfqa.db" {
		t.Errorf("sqlite: %+v", got.VectorStore.SQLite)
	}
}

func TestLoadDefault_writesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, path, err := LoadDefault()
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(home, ".config", "pdfqa", "config.yaml") {
		t.Errorf("path: %q", path)
	}
	if cfg.VectorStore.Type != "sqlite" {
		t.Errorf("store: %q", cfg.VectorStore.Type)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config not written: %v", err)
	}
}
