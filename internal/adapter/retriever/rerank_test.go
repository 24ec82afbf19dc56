package retriever

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexrag/internal/adapter/analyzer"
	"lexrag/internal/domain"
)

type fixedScorer struct {
	scores []float64
	err    error
	calls  int
}

func (s *fixedScorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	s.calls++
	return s.scores, s.err
}

func (s *fixedScorer) ModelName() string { return "fixed" }

func candidates(ids ...string) []domain.RetrievalCandidate {
	out := make([]domain.RetrievalCandidate, len(ids))
	for i, id := range ids {
		out[i] = domain.RetrievalCandidate{
			ChunkID:    id,
			Chunk:      domain.Chunk{ID: id, Content: "conteúdo " + id},
			FusedScore: 1 / float64(61+i),
		}
	}
	return out
}

func TestReranker_OrdersByScore(t *testing.T) {
	scorer := &fixedScorer{scores: []float64{0.1, 0.9, 0.5, 0.9}}
	r := NewReranker(scorer, nil, nil)

	in := candidates("a", "b", "c", "d")
	res, err := r.Rerank(context.Background(), "q", in, 3)
	require.NoError(t, err)
	assert.True(t, res.Reranked)
	require.Len(t, res.Results, 3)

	// b and d tie on score; b has the higher fused score.
	assert.Equal(t, "b", res.Results[0].Chunk.ID)
	assert.Equal(t, "d", res.Results[1].Chunk.ID)
	assert.Equal(t, "c", res.Results[2].Chunk.ID)
	for i := 1; i < len(res.Results); i++ {
		assert.GreaterOrEqual(t, *res.Results[i-1].RerankScore, *res.Results[i].RerankScore)
	}
	assert.Equal(t, "conteúdo b", res.Results[0].Chunk.Content)
	assert.Nil(t, in[1].RerankScore, "input candidates are not mutated")
	assert.Equal(t, 1, scorer.calls, "one batched scorer call")
}

func TestReranker_Deterministic(t *testing.T) {
	r := NewReranker(&fixedScorer{scores: []float64{2, 2, 2}}, nil, nil)
	first, err := r.Rerank(context.Background(), "q", candidates("x", "y", "z"), 5)
	require.NoError(t, err)
	second, err := r.Rerank(context.Background(), "q", candidates("x", "y", "z"), 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "x", first.Results[0].Chunk.ID)
}

func TestReranker_FallsBackWhenUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		scorer *fixedScorer
	}{
		{"error", &fixedScorer{err: errors.New("503")}},
		{"arity", &fixedScorer{scores: []float64{1}}},
		{"nan", &fixedScorer{scores: []float64{1, math.NaN(), 0}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReranker(tc.scorer, nil, nil)
			res, err := r.Rerank(context.Background(), "q", candidates("a", "b", "c"), 2)
			require.NoError(t, err)
			assert.False(t, res.Reranked)
			assert.ErrorIs(t, res.Err, domain.ErrRerankerUnavailable)
			require.Len(t, res.Results, 2)
			assert.Equal(t, "a", res.Results[0].Chunk.ID)
			assert.Nil(t, res.Results[0].RerankScore)
		})
	}
}

func TestReranker_NoScorer(t *testing.T) {
	r := NewReranker(nil, nil, nil)
	res, err := r.Rerank(context.Background(), "q", candidates("a", "b"), 5)
	require.NoError(t, err)
	assert.False(t, res.Reranked)
	assert.NoError(t, res.Err)
	assert.Len(t, res.Results, 2)
}

func TestReranker_MinScore(t *testing.T) {
	threshold := 0.5
	r := NewReranker(&fixedScorer{scores: []float64{0.2, 0.7, 0.5}}, &threshold, nil)
	res, err := r.Rerank(context.Background(), "q", candidates("a", "b", "c"), 5)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "b", res.Results[0].Chunk.ID)
	assert.Equal(t, "c", res.Results[1].Chunk.ID)
}

func TestReranker_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scorer := &fixedScorer{scores: []float64{1}}
	_, err := NewReranker(scorer, nil, nil).Rerank(ctx, "q", candidates("a"), 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, scorer.calls)
}

func TestOverlapScorer(t *testing.T) {
	s := NewOverlapScorer(analyzer.NewTokenizer(true))
	scores, err := s.Score(context.Background(), "trancamento de matrícula", []string{
		"O trancamento da matrícula depende de requerimento.",
		"A matrícula é semestral.",
		"Do estágio supervisionado.",
	})
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.InDelta(t, 1.0, scores[0], 1e-9)
	assert.InDelta(t, 0.5, scores[1], 1e-9)
	assert.Zero(t, scores[2])
}
