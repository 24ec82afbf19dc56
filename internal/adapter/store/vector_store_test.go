package store

import (
	"context"
	"testing"

	"lexrag/internal/domain"
	"lexrag/internal/port"
)

func vectorItem(id string, status domain.Status, category domain.Category, v ...float32) port.VectorItem {
	return port.VectorItem{
		ID:     id,
		Vector: v,
		Metadata: map[string]string{
			port.MetaStatus:   string(status),
			port.MetaCategory: string(category),
			port.MetaSource:   "res.md",
		},
	}
}

func TestBoltVectorStore_Query(t *testing.T) {
	s := openTestStore(t)
	vs, err := NewBoltVectorStore(s.DB(), 2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	err = vs.Upsert(ctx, []port.VectorItem{
		vectorItem("b", domain.StatusValid, domain.CategoryResolution, 1, 0),
		vectorItem("a", domain.StatusValid, domain.CategoryResolution, 1, 0),
		vectorItem("c", domain.StatusValid, domain.CategoryStatute, 0, 1),
		vectorItem("r", domain.StatusRevoked, domain.CategoryResolution, 1, 0),
	})
	if err != nil {
		t.Fatal(err)
	}

	hits, err := vs.Query(ctx, []float32{1, 0}, 10, domain.Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected revoked vector to be filtered, got %+v", hits)
	}
	if hits[0].ChunkID != "a" || hits[1].ChunkID != "b" || hits[2].ChunkID != "c" {
		t.Errorf("expected ties broken by id, got %+v", hits)
	}

	hits, _ = vs.Query(ctx, []float32{1, 0}, 10, domain.Filters{IncludeRevoked: true, Categories: []domain.Category{domain.CategoryResolution}})
	if len(hits) != 3 {
		t.Errorf("expected 3 resolution hits including revoked, got %+v", hits)
	}

	hits, _ = vs.Query(ctx, []float32{1, 0}, 1, domain.Filters{})
	if len(hits) != 1 {
		t.Errorf("expected k to cap results, got %d", len(hits))
	}

	if _, err := vs.Query(ctx, []float32{1, 0, 0}, 1, domain.Filters{}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestBoltVectorStore_DeleteAndReload(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	vs, err := NewBoltVectorStore(s.DB(), 2)
	if err != nil {
		t.Fatal(err)
	}
	vs.Upsert(ctx, []port.VectorItem{
		vectorItem("a", domain.StatusValid, domain.CategoryResolution, 1, 0),
		vectorItem("b", domain.StatusValid, domain.CategoryResolution, 0, 1),
	})
	if err := vs.Delete(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewBoltVectorStore(s.DB(), 2)
	if err != nil {
		t.Fatal(err)
	}
	n, _ := reloaded.Count(ctx)
	if n != 1 {
		t.Errorf("expected 1 persisted vector, got %d", n)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.9999 {
		t.Errorf("identical vectors should score 1, got %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors should score 0, got %f", got)
	}
	if got := cosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero vector should score 0, got %f", got)
	}
}
