package port

import (
	"context"

	"lexrag/internal/domain"
)

// KeywordIndex is the sparse retrieval leg.
type KeywordIndex interface {
	// Search returns at most k hits matching filter, best first.
	Search(ctx context.Context, query string, k int, filter domain.Filters) ([]domain.Hit, error)
}

// KeywordWriter maintains a keyword index that lives outside the chunk store.
type KeywordWriter interface {
	ReplaceDocument(ctx context.Context, docID string, chunks []domain.Chunk) error

	DeleteDocument(ctx context.Context, docID string) error
}

// DenseIndex is the semantic retrieval leg.
type DenseIndex interface {
	Search(ctx context.Context, query string, k int, filter domain.Filters) ([]domain.Hit, error)
}
