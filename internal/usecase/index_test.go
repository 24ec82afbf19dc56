package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexrag/config"
	"lexrag/internal/adapter/analyzer"
	"lexrag/internal/adapter/embedding"
	"lexrag/internal/adapter/fs"
	"lexrag/internal/adapter/memstore"
	"lexrag/internal/adapter/revocation"
	"lexrag/internal/adapter/segmenter"
	"lexrag/internal/domain"
)

const resolucaoEnsino = `# Resolução nº 10/2018

O CONSELHO UNIVERSITÁRIO, no uso de suas atribuições, resolve:

CAPÍTULO I - DO TRANCAMENTO

Art. 1º O trancamento de matrícula poderá ser solicitado pelo estudante até a metade do período letivo.

Art. 2º O pedido de trancamento será analisado pela coordenação do curso.

CAPÍTULO II - DO APROVEITAMENTO

Art. 3º O aproveitamento de estudos exige equivalência de carga horária.
`

const resolucaoRevogada = `Art. 1º O trancamento de matrícula é vedado no primeiro período.
`

const estatuto = `# Estatuto

Art. 1º A universidade goza de autonomia didático-científica.

Art. 2º (Revogado)
`

type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate() { c.n.Add(1) }

type failingKeyword struct{ err error }

func (f failingKeyword) ReplaceDocument(ctx context.Context, docID string, chunks []domain.Chunk) error {
	return f.err
}

func (f failingKeyword) DeleteDocument(ctx context.Context, docID string) error { return nil }

type corpus struct {
	t    *testing.T
	root string
}

func newCorpus(t *testing.T) *corpus {
	t.Helper()
	c := &corpus{t: t, root: t.TempDir()}
	c.write("PROEN/resolucao_10_2018.md", resolucaoEnsino)
	c.write("PROEN/resolucao_02_2009_REVOGADA.md", resolucaoRevogada)
	c.write("estatuto.md", estatuto)
	return c
}

func (c *corpus) write(rel, content string) {
	c.t.Helper()
	p := filepath.Join(c.root, rel)
	require.NoError(c.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(c.t, os.WriteFile(p, []byte(content), 0o644))
}

func (c *corpus) remove(rel string) {
	c.t.Helper()
	require.NoError(c.t, os.Remove(filepath.Join(c.root, rel)))
}

type indexFixture struct {
	store   *memstore.MemoryStore
	vectors *memstore.VectorIndex
	uc      *IndexUseCase
	cache   *countingInvalidator
}

func newIndexFixture(opts IndexOptions) *indexFixture {
	tokenizer := analyzer.NewTokenizer(true)
	f := &indexFixture{
		store:   memstore.NewMemoryStore(),
		vectors: memstore.NewVectorIndex(),
		cache:   &countingInvalidator{},
	}
	opts.Vectors = f.vectors
	opts.Embedder = embedding.NewHashEmbedder(64, tokenizer)
	opts.Cache = f.cache
	f.uc = NewIndexUseCase(
		f.store,
		fs.NewLoader(config.DefaultConfig().Corpus),
		segmenter.NewLegalSegmenter(512, tokenizer),
		revocation.NewAnnotator(),
		opts,
	)
	return f
}

func TestIndex_Incremental(t *testing.T) {
	c := newCorpus(t)
	f := newIndexFixture(IndexOptions{Workers: 2, BatchSize: 2})
	ctx := context.Background()

	res, err := f.uc.Index(ctx, c.root)
	require.NoError(t, err)
	assert.Equal(t, 3, res.FilesIndexed)
	assert.Empty(t, res.Errors)

	stats, err := f.store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDocs)
	assert.Equal(t, res.ChunksCreated, stats.TotalChunks)

	count, err := f.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.ChunksCreated, count)
	assert.Equal(t, int32(1), f.cache.n.Load())

	res, err = f.uc.Index(ctx, c.root)
	require.NoError(t, err)
	assert.Equal(t, 0, res.FilesIndexed)
	assert.Equal(t, 3, res.FilesSkipped)
	assert.Equal(t, int32(1), f.cache.n.Load(), "unchanged corpus must not invalidate the cache")
}

func TestIndex_CountsFallbackDocuments(t *testing.T) {
	c := newCorpus(t)
	c.write("outros/ata.md", "CAPÍTULO DAS NORMAS\nCAPÍTULO IIII\nTexto corrido sem artigos.")
	f := newIndexFixture(IndexOptions{})

	res, err := f.uc.Index(context.Background(), c.root)
	require.NoError(t, err)
	assert.Equal(t, 4, res.FilesIndexed)
	assert.Equal(t, 1, res.Fallbacks)
	assert.Equal(t, 3, res.Issues)
}

func TestIndex_ChangedDocumentGetsNewIDs(t *testing.T) {
	c := newCorpus(t)
	f := newIndexFixture(IndexOptions{})
	ctx := context.Background()

	_, err := f.uc.Index(ctx, c.root)
	require.NoError(t, err)
	before, err := f.store.GetChunksByDoc("PROEN/resolucao_10_2018")
	require.NoError(t, err)
	require.NotEmpty(t, before)

	c.write("PROEN/resolucao_10_2018.md", strings.Replace(resolucaoEnsino, "metade", "terça parte", 1))
	res, err := f.uc.Index(ctx, c.root)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesIndexed)
	assert.Equal(t, 2, res.FilesSkipped)

	after, err := f.store.GetChunksByDoc("PROEN/resolucao_10_2018")
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for _, old := range before {
		_, err := f.store.GetChunk(old.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		for _, cur := range after {
			assert.NotEqual(t, old.ID, cur.ID)
		}
	}

	stats, err := f.store.GetStats()
	require.NoError(t, err)
	count, err := f.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalChunks, count, "stale vectors must be deleted")
}

func TestIndex_DeletesVanishedDocuments(t *testing.T) {
	c := newCorpus(t)
	f := newIndexFixture(IndexOptions{})
	ctx := context.Background()

	_, err := f.uc.Index(ctx, c.root)
	require.NoError(t, err)

	c.remove("estatuto.md")
	res, err := f.uc.Index(ctx, c.root)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesDeleted)

	_, err = f.store.GetDoc("estatuto")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stats, err := f.store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDocs)
	count, err := f.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalChunks, count)
}

func TestIndex_RevocationStatus(t *testing.T) {
	c := newCorpus(t)
	f := newIndexFixture(IndexOptions{})

	_, err := f.uc.Index(context.Background(), c.root)
	require.NoError(t, err)

	revoked, err := f.store.GetChunksByDoc("PROEN/resolucao_02_2009_REVOGADA")
	require.NoError(t, err)
	require.NotEmpty(t, revoked)
	for _, ch := range revoked {
		assert.Equal(t, domain.StatusRevoked, ch.Status, ch.ID)
	}

	chunks, err := f.store.GetChunksByDoc("estatuto")
	require.NoError(t, err)
	statuses := map[string]domain.Status{}
	for _, ch := range chunks {
		statuses[ch.ArticleID] = ch.Status
	}
	assert.Equal(t, domain.StatusValid, statuses["Art. 1"])
	assert.Equal(t, domain.StatusRevoked, statuses["Art. 2"])
}

func TestIndex_SecondaryFailureRollsBack(t *testing.T) {
	c := newCorpus(t)
	f := newIndexFixture(IndexOptions{Keyword: failingKeyword{err: errors.New("disk full")}})

	res, err := f.uc.Index(context.Background(), c.root)
	require.NoError(t, err)
	assert.Equal(t, 0, res.FilesIndexed)
	assert.Len(t, res.Errors, 3)

	docs, err := f.store.ListDocs()
	require.NoError(t, err)
	assert.Empty(t, docs, "documents must be rolled back so the next run retries them")
}

func TestIndex_Reset(t *testing.T) {
	c := newCorpus(t)
	f := newIndexFixture(IndexOptions{})
	ctx := context.Background()

	_, err := f.uc.Index(ctx, c.root)
	require.NoError(t, err)
	require.NoError(t, f.uc.Reset(ctx))

	docs, err := f.store.ListDocs()
	require.NoError(t, err)
	assert.Empty(t, docs)
	count, err := f.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIndex_Cancelled(t *testing.T) {
	c := newCorpus(t)
	f := newIndexFixture(IndexOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.uc.Index(ctx, c.root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPostings(t *testing.T) {
	postings := Postings([]domain.Chunk{
		{ID: "a", Tokens: []string{"prazo", "recurs", "prazo"}},
		{ID: "b", Tokens: []string{"prazo"}},
	})
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, postings["prazo"])
	assert.Equal(t, map[string]int{"a": 1}, postings["recurs"])
}
