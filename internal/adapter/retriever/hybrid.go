package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"lexrag/internal/domain"
	"lexrag/internal/logging"
	"lexrag/internal/port"
)

const (
	DefaultTopK = 50

	LegDense  = "dense"
	LegSparse = "sparse"
)

type HybridOptions struct {
	Fusion FusionOptions
	// LegK is how many hits each leg contributes; values below topK are raised to it.
	LegK int
}

// HybridRetriever runs the dense and sparse legs concurrently and fuses them
// with reciprocal rank fusion. Either leg may be nil when it is not
// configured; a leg that fails at query time degrades the result instead of
// failing it.
type HybridRetriever struct {
	dense  port.DenseIndex
	sparse port.KeywordIndex
	chunks port.ChunkStore
	opts   HybridOptions
	logger *slog.Logger
}

func NewHybridRetriever(
	dense port.DenseIndex,
	sparse port.KeywordIndex,
	chunks port.ChunkStore,
	opts HybridOptions,
	logger *slog.Logger,
) *HybridRetriever {
	if opts.Fusion.K <= 0 {
		opts.Fusion.K = DefaultRRFK
	}
	return &HybridRetriever{
		dense:  dense,
		sparse: sparse,
		chunks: chunks,
		opts:   opts,
		logger: logging.OrDefault(logger),
	}
}

type legResult struct {
	hits []domain.Hit
	err  error
}

// Query returns at most topK fused candidates passing filters, hydrated with
// their chunks. Candidates whose chunk vanished after the legs ran are
// dropped. Nothing is returned once ctx is done.
func (r *HybridRetriever) Query(ctx context.Context, query string, topK int, filters domain.Filters) (domain.Retrieval, error) {
	if strings.TrimSpace(query) == "" {
		return domain.Retrieval{}, domain.ErrEmptyQuery
	}
	if r.dense == nil && r.sparse == nil {
		return domain.Retrieval{}, fmt.Errorf("%w: no retrieval leg configured", domain.ErrIndexUnavailable)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	legK := r.opts.LegK
	if legK < topK {
		legK = topK
	}

	var dense, sparse legResult
	var wg sync.WaitGroup
	if r.dense != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dense.hits, dense.err = r.dense.Search(ctx, query, legK, filters)
		}()
	}
	if r.sparse != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sparse.hits, sparse.err = r.sparse.Search(ctx, query, legK, filters)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return domain.Retrieval{}, err
	}

	var result domain.Retrieval
	denseFailed := r.dense != nil && dense.err != nil
	sparseFailed := r.sparse != nil && sparse.err != nil
	switch {
	case denseFailed && (sparseFailed || r.sparse == nil):
		return domain.Retrieval{}, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, errors.Join(dense.err, sparse.err))
	case sparseFailed && r.dense == nil:
		return domain.Retrieval{}, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, sparse.err)
	case denseFailed:
		result.Degraded = true
		result.FailedLeg = LegDense
		result.LegErr = fmt.Errorf("%w: %s: %w", domain.ErrLegFailure, LegDense, dense.err)
	case sparseFailed:
		result.Degraded = true
		result.FailedLeg = LegSparse
		result.LegErr = fmt.Errorf("%w: %s: %w", domain.ErrLegFailure, LegSparse, sparse.err)
	}
	if result.Degraded {
		r.logger.Warn("retrieval leg failed, continuing with one leg",
			slog.String("leg", result.FailedLeg),
			slog.String("error", result.LegErr.Error()))
	}

	fused := Fuse(dense.hits, sparse.hits, r.opts.Fusion)
	if err := ctx.Err(); err != nil {
		return domain.Retrieval{}, err
	}

	candidates, err := r.hydrate(ctx, fused, topK, filters)
	if err != nil {
		return domain.Retrieval{}, err
	}
	result.Candidates = candidates
	return result, nil
}

func (r *HybridRetriever) hydrate(ctx context.Context, fused []domain.RetrievalCandidate, topK int, filters domain.Filters) ([]domain.RetrievalCandidate, error) {
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]string, len(fused))
	for i, c := range fused {
		ids[i] = c.ChunkID
	}
	chunks, err := r.chunks.GetChunks(ctx, ids)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: hydrate candidates: %w", domain.ErrIndexUnavailable, err)
	}

	out := make([]domain.RetrievalCandidate, 0, min(topK, len(fused)))
	dropped := 0
	for _, c := range fused {
		chunk, ok := chunks[c.ChunkID]
		if !ok {
			dropped++
			continue
		}
		if !filters.MatchChunk(chunk) {
			continue
		}
		c.Chunk = chunk
		out = append(out, c)
		if len(out) == topK {
			break
		}
	}
	if dropped > 0 {
		r.logger.Debug("dropped stale candidates", slog.Int("count", dropped))
	}
	return out, nil
}
