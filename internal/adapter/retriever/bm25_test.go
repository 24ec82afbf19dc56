package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexrag/internal/adapter/analyzer"
	"lexrag/internal/adapter/memstore"
	"lexrag/internal/domain"
	"lexrag/internal/port"
)

type testChunk struct {
	id      string
	content string
	status  domain.Status
}

func indexChunks(t *testing.T, tok *analyzer.Tokenizer, chunks ...testChunk) *memstore.MemoryStore {
	t.Helper()
	st := memstore.NewMemoryStore()
	file := port.IndexedFile{
		Doc:      domain.Document{ID: "res-1", Path: "res-1.md"},
		Postings: map[string]map[string]int{},
	}
	for _, tc := range chunks {
		status := tc.status
		if status == "" {
			status = domain.StatusValid
		}
		c := domain.Chunk{
			ID:       tc.id,
			DocID:    "res-1",
			Content:  tc.content,
			Source:   "res-1.md",
			Category: domain.CategoryResolution,
			Status:   status,
			Tokens:   tok.Tokenize(tc.content),
		}
		file.Chunks = append(file.Chunks, c)
		for _, term := range c.Tokens {
			if file.Postings[term] == nil {
				file.Postings[term] = map[string]int{}
			}
			file.Postings[term][c.ID]++
		}
	}
	_, err := st.ReplaceDocument(file)
	require.NoError(t, err)
	return st
}

func TestBM25Retriever_Search(t *testing.T) {
	tok := analyzer.NewTokenizer(true)
	st := indexChunks(t, tok,
		testChunk{id: "c1", content: "Art. 10. O trancamento de matrícula será requerido no prazo fixado no calendário."},
		testChunk{id: "c2", content: "Art. 11. A matrícula de alunos especiais obedece a edital próprio."},
		testChunk{id: "c3", content: "Art. 12. Cabe recurso ao Conselho no prazo de dez dias."},
	)
	r := NewBM25Retriever(st, tok, 1.2, 0.75)

	hits, err := r.Search(context.Background(), "trancamento de matrícula", 10, domain.Filters{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.Equal(t, "c2", hits[1].ChunkID)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	hits, err = r.Search(context.Background(), "trancamento de matrícula", 1, domain.Filters{})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestBM25Retriever_ExcludesRevoked(t *testing.T) {
	tok := analyzer.NewTokenizer(true)
	st := indexChunks(t, tok,
		testChunk{id: "c1", content: "Art. 3º O estágio obrigatório terá duração mínima."},
		testChunk{id: "c2", content: "Art. 4º O estágio não obrigatório (Revogado).", status: domain.StatusRevoked},
	)
	r := NewBM25Retriever(st, tok, 1.2, 0.75)

	hits, err := r.Search(context.Background(), "estágio", 10, domain.Filters{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)

	hits, err = r.Search(context.Background(), "estágio", 10, domain.Filters{IncludeRevoked: true})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestBM25Retriever_TiesOrderedByID(t *testing.T) {
	tok := analyzer.NewTokenizer(true)
	st := indexChunks(t, tok,
		testChunk{id: "b", content: "colação de grau"},
		testChunk{id: "a", content: "colação de grau"},
	)
	r := NewBM25Retriever(st, tok, 1.2, 0.75)

	hits, err := r.Search(context.Background(), "colação", 10, domain.Filters{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.Equal(t, "b", hits[1].ChunkID)
}

func TestBM25Retriever_EmptyQuery(t *testing.T) {
	tok := analyzer.NewTokenizer(true)
	st := indexChunks(t, tok, testChunk{id: "c1", content: "matrícula"})
	r := NewBM25Retriever(st, tok, 1.2, 0.75)

	hits, err := r.Search(context.Background(), "de a o", 10, domain.Filters{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
