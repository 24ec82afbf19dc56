package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexrag/internal/domain"
)

const golden = `queries:
  - query: trancamento de matrícula
    expect:
      - doc: PROEN/resolucao_10_2018
        article: Art. 1
  - query: trancamento de matrícula
    include_revoked: true
    expect:
      - doc: PROEN/resolucao_02_2009_REVOGADA
  - query: orçamento da reitoria
    expect:
      - doc: naoexiste
`

func TestEvaluate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(golden), 0o644))

	set, err := LoadGoldenSet(path)
	require.NoError(t, err)
	require.Len(t, set.Queries, 3)

	eval, err := Evaluate(context.Background(), newPipeline(t), set, 5)
	require.NoError(t, err)
	require.Len(t, eval.Queries, 3)

	assert.Equal(t, 1, eval.Queries[0].FirstHit)
	assert.Equal(t, 1.0, eval.Queries[0].Recall)
	assert.Positive(t, eval.Queries[1].FirstHit)
	assert.Zero(t, eval.Queries[2].FirstHit)
	assert.Zero(t, eval.Queries[2].Recall)

	assert.InDelta(t, 2.0/3.0, eval.HitRate, 1e-9)
	assert.InDelta(t, 2.0/3.0, eval.Recall, 1e-9)
	assert.Zero(t, eval.Degraded)
}

func TestScore(t *testing.T) {
	chunk := func(doc, art string) domain.RankedChunk {
		return domain.RankedChunk{Chunk: domain.Chunk{DocID: doc, ArticleID: art}}
	}
	q := GoldenQuery{Expect: []Expectation{
		{Doc: "estatuto", Article: "Art. 3"},
		{Doc: "regimento"},
	}}
	resp := domain.Response{Status: domain.ResponseOK, Results: []domain.RankedChunk{
		chunk("estatuto", "Art. 1"),
		chunk("regimento", "Art. 9"),
		chunk("regimento", "Art. 10"),
	}}

	s := score(q, resp)
	assert.Equal(t, 2, s.FirstHit)
	assert.InDelta(t, 0.5, s.Recall, 1e-9)
}

func TestLoadGoldenSet_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden.yaml")
	require.NoError(t, os.WriteFile(path, []byte("queries: []\n"), 0o644))

	_, err := LoadGoldenSet(path)
	assert.Error(t, err)
}
