package memory

import (
	"context"
	"errors"
	"testing"

	"pdfqa/internal/domain"
)

func entry(id string, v ...float32) domain.IndexEntry {
	return domain.IndexEntry{ID: id, Vector: v, Payload: domain.Payload{Content: "content " + id}}
}

func TestStore_queryOrderAndLimit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, e := range []domain.IndexEntry{entry("a", 1, 0), entry("b", 0.7, 0.7), entry("c", 0, 1)} {
		if err := s.Upsert(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Query(ctx, []float32{1, 0.1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("order: %s %s", got[0].ID, got[1].ID)
	}
	if got[0].Score < got[1].Score {
		t.Error("scores not descending")
	}
	if got[0].Payload.Content != "content a" {
		t.Errorf("payload: %+v", got[0].Payload)
	}
}

func TestStore_upsertOverwrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.Upsert(ctx, entry("id-0", 1, 0))
	e := entry("id-0", 0, 1)
	e.Payload.Content = "replaced"
	if err := s.Upsert(ctx, e); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
	got, _ := s.Query(ctx, []float32{0, 1}, 1)
	if got[0].Payload.Content != "replaced" {
		t.Errorf("got %q", got[0].Payload.Content)
	}
}

func TestStore_dimensionMismatch(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.Upsert(ctx, entry("a", 1, 0, 0))
	if err := s.Upsert(ctx, entry("b", 1, 0)); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("upsert: expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := s.Query(ctx, []float32{1}, 1); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("query: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestStore_emptyAndClear(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	got, err := s.Query(ctx, []float32{1}, 3)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty store: %v %v", got, err)
	}
	_ = s.Upsert(ctx, entry("a", 1))
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Error("expected empty store after Clear")
	}
	// dimension resets with the data
	if err := s.Upsert(ctx, entry("b", 1, 2)); err != nil {
		t.Errorf("upsert after clear: %v", err)
	}
}

func TestStore_emptyVector(t *testing.T) {
	if err := NewStore().Upsert(context.Background(), entry("a")); err == nil {
		t.Error("expected error")
	}
}
