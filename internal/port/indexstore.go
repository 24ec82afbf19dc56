package port

import (
	"context"

	"lexrag/internal/domain"
)

type IndexStore interface {
	GetDoc(id string) (domain.Document, error)

	ListDocs() ([]domain.Document, error)

	GetChunk(id string) (domain.Chunk, error)

	GetChunksByDoc(docID string) ([]domain.Chunk, error)

	GetPostings(term string) ([]domain.Posting, error)

	GetStats() (domain.Stats, error)

	// ReplaceDocument swaps the stored chunk set of a document in one step.
	// It returns the ids of the chunks it removed.
	ReplaceDocument(file IndexedFile) ([]string, error)

	// DeleteDocument removes a document with all of its chunks and postings.
	DeleteDocument(id string) ([]string, error)

	Close() error
}

type IndexedFile struct {
	Doc      domain.Document
	Chunks   []domain.Chunk
	Postings map[string]map[string]int
}

// ChunkStore hydrates candidate ids into chunks. Missing ids are skipped.
type ChunkStore interface {
	GetChunks(ctx context.Context, ids []string) (map[string]domain.Chunk, error)
}
