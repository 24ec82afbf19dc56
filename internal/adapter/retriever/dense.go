package retriever

import (
	"context"
	"fmt"

	"lexrag/internal/domain"
	"lexrag/internal/port"
)

// DenseRetriever is the semantic leg: it embeds the query and asks the vector
// index for its nearest chunks.
type DenseRetriever struct {
	embedder port.Embedder
	index    port.VectorIndex
}

func NewDenseRetriever(embedder port.Embedder, index port.VectorIndex) *DenseRetriever {
	return &DenseRetriever{
		embedder: embedder,
		index:    index,
	}
}

func (r *DenseRetriever) Search(ctx context.Context, query string, k int, filter domain.Filters) ([]domain.Hit, error) {
	if r.embedder == nil || r.index == nil {
		return nil, fmt.Errorf("semantic search not available: embeddings not configured")
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	hits, err := r.index.Query(ctx, embeddings[0], k, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return hits, nil
}
