package port

import (
	"context"

	"lexrag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns one vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	Dimension() int

	ModelName() string
}

// VectorIndex stores chunk embeddings and answers nearest-neighbour queries.
type VectorIndex interface {
	Upsert(ctx context.Context, items []VectorItem) error

	// Query returns at most k hits matching filter, best first.
	Query(ctx context.Context, vector []float32, k int, filter domain.Filters) ([]domain.Hit, error)

	Delete(ctx context.Context, ids []string) error

	Count(ctx context.Context) (int, error)
}

// VectorItem represents a vector to be stored.
type VectorItem struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Metadata keys attached to every vector so filters can be pushed down.
const (
	MetaStatus   = "status"
	MetaCategory = "category"
	MetaSource   = "source"
	MetaDocID    = "doc_id"
)

func ChunkMetadata(c domain.Chunk) map[string]string {
	return map[string]string{
		MetaStatus:   string(c.Status),
		MetaCategory: string(c.Category),
		MetaSource:   c.Source,
		MetaDocID:    c.DocID,
	}
}

// MatchMetadata applies filters to stored vector metadata.
func MatchMetadata(f domain.Filters, meta map[string]string) bool {
	return f.Match(domain.Status(meta[MetaStatus]), domain.Category(meta[MetaCategory]), meta[MetaSource])
}
