package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"lexrag/internal/domain"
	"lexrag/internal/port"
)

type VectorIndex struct {
	mu    sync.RWMutex
	items map[string]port.VectorItem
}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{items: make(map[string]port.VectorItem)}
}

func (v *VectorIndex) Upsert(ctx context.Context, items []port.VectorItem) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, item := range items {
		v.items[item.ID] = item
	}
	return nil
}

func (v *VectorIndex) Query(ctx context.Context, vector []float32, k int, filter domain.Filters) ([]domain.Hit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	hits := make([]domain.Hit, 0, len(v.items))
	for id, item := range v.items {
		if len(item.Vector) != len(vector) {
			return nil, fmt.Errorf("vector dimension mismatch: expected %d, got %d", len(item.Vector), len(vector))
		}
		if !port.MatchMetadata(filter, item.Metadata) {
			continue
		}
		hits = append(hits, domain.Hit{ChunkID: id, Score: cosine(vector, item.Vector)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (v *VectorIndex) Delete(ctx context.Context, ids []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range ids {
		delete(v.items, id)
	}
	return nil
}

func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.items), nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
