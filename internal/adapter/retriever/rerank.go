package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"lexrag/internal/domain"
	"lexrag/internal/logging"
	"lexrag/internal/port"
)

const DefaultFinalK = 5

// Reranker reorders fused candidates with a joint query/passage scorer and
// keeps the best finalK. When the scorer is missing or misbehaves the fused
// order is kept and the result is marked as not reranked.
type Reranker struct {
	scorer   port.Scorer
	minScore *float64
	logger   *slog.Logger
}

func NewReranker(scorer port.Scorer, minScore *float64, logger *slog.Logger) *Reranker {
	return &Reranker{
		scorer:   scorer,
		minScore: minScore,
		logger:   logging.OrDefault(logger),
	}
}

func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.RetrievalCandidate, finalK int) (domain.Reranking, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reranking{}, err
	}
	if finalK <= 0 {
		finalK = DefaultFinalK
	}
	if len(candidates) == 0 {
		return domain.Reranking{Reranked: r.scorer != nil}, nil
	}
	if r.scorer == nil {
		return domain.Reranking{Results: fusedOrder(candidates, finalK)}, nil
	}

	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Chunk.Content
	}

	scores, err := r.scorer.Score(ctx, query, passages)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.Reranking{}, ctxErr
	}
	if err == nil {
		err = checkScores(scores, len(passages))
	}
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", domain.ErrRerankerUnavailable, r.scorer.ModelName(), err)
		r.logger.Warn("reranker unavailable, keeping fused order", slog.String("error", err.Error()))
		return domain.Reranking{Results: fusedOrder(candidates, finalK), Err: err}, nil
	}

	scored := make([]domain.RetrievalCandidate, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		s := scores[i]
		scored[i].RerankScore = &s
	}
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if *a.RerankScore != *b.RerankScore {
			return *a.RerankScore > *b.RerankScore
		}
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		return a.ChunkID < b.ChunkID
	})

	results := make([]domain.RankedChunk, 0, min(finalK, len(scored)))
	for _, c := range scored {
		if len(results) == finalK {
			break
		}
		if r.minScore != nil && *c.RerankScore < *r.minScore {
			break
		}
		results = append(results, domain.RankedChunk{
			Chunk:       c.Chunk,
			RerankScore: c.RerankScore,
			FusedScore:  c.FusedScore,
		})
	}
	return domain.Reranking{Results: results, Reranked: true}, nil
}

func checkScores(scores []float64, want int) error {
	if len(scores) != want {
		return fmt.Errorf("got %d scores for %d passages", len(scores), want)
	}
	for i, s := range scores {
		if math.IsNaN(s) {
			return fmt.Errorf("score %d is NaN", i)
		}
	}
	return nil
}

// fusedOrder truncates candidates, already in fused order, to finalK.
func fusedOrder(candidates []domain.RetrievalCandidate, finalK int) []domain.RankedChunk {
	n := min(finalK, len(candidates))
	out := make([]domain.RankedChunk, n)
	for i := 0; i < n; i++ {
		out[i] = domain.RankedChunk{
			Chunk:      candidates[i].Chunk,
			FusedScore: candidates[i].FusedScore,
		}
	}
	return out
}
