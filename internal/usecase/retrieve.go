package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"lexrag/internal/adapter/cache"
	"lexrag/internal/domain"
	"lexrag/internal/logging"
)

const (
	defaultTopK   = 50
	defaultFinalK = 5
)

// Retriever is the first, recall-oriented stage.
type Retriever interface {
	Query(ctx context.Context, query string, topK int, filters domain.Filters) (domain.Retrieval, error)
}

// Reranker is the second, precision-oriented stage.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.RetrievalCandidate, finalK int) (domain.Reranking, error)
}

type Request struct {
	Query   string
	TopK    int
	FinalK  int
	Filters domain.Filters
}

// RetrieveUseCase runs the two-stage pipeline for one query at a time. It
// holds no per-query state, so one instance serves concurrent callers.
type RetrieveUseCase struct {
	retriever Retriever
	reranker  Reranker
	cache     *cache.QueryCache
	topK      int
	finalK    int
	logger    *slog.Logger
}

// NewRetrieveUseCase builds the pipeline. queryCache may be nil.
func NewRetrieveUseCase(retriever Retriever, reranker Reranker, queryCache *cache.QueryCache, topK, finalK int, logger *slog.Logger) *RetrieveUseCase {
	if topK <= 0 {
		topK = defaultTopK
	}
	if finalK <= 0 {
		finalK = defaultFinalK
	}
	return &RetrieveUseCase{
		retriever: retriever,
		reranker:  reranker,
		cache:     queryCache,
		topK:      topK,
		finalK:    finalK,
		logger:    logging.OrDefault(logger),
	}
}

// Retrieve answers a query with at most FinalK ranked chunks. A failed leg
// or an unavailable reranker degrade the response; only a total index
// outage, an empty query or cancellation return an error.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, req Request) (domain.Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return domain.Response{}, domain.ErrEmptyQuery
	}
	topK := req.TopK
	if topK <= 0 {
		topK = u.topK
	}
	finalK := req.FinalK
	if finalK <= 0 {
		finalK = u.finalK
	}
	if finalK > topK {
		finalK = topK
	}

	queryID := uuid.NewString()
	logger := u.logger.With(slog.String("query_id", queryID))

	key := cache.Key{Query: query, TopK: topK, FinalK: finalK, Filters: req.Filters}
	if u.cache != nil {
		if resp, ok := u.cache.Get(key); ok {
			logger.Debug("query cache hit")
			resp.QueryID = queryID
			return resp, nil
		}
	}

	retrieval, err := u.retriever.Query(ctx, query, topK, req.Filters)
	if err != nil {
		return domain.Response{}, err
	}
	if retrieval.Degraded {
		logger.Warn("retrieval degraded",
			slog.String("failed_leg", retrieval.FailedLeg),
			slog.Any("error", retrieval.LegErr),
		)
	}
	if err := ctx.Err(); err != nil {
		return domain.Response{}, err
	}

	ranking, err := u.reranker.Rerank(ctx, query, retrieval.Candidates, finalK)
	if err != nil {
		return domain.Response{}, err
	}

	resp := domain.Response{
		QueryID:   queryID,
		Query:     query,
		Status:    domain.ResponseOK,
		Degraded:  retrieval.Degraded,
		FailedLeg: retrieval.FailedLeg,
		Reranked:  ranking.Reranked,
		Results:   ranking.Results,
	}
	switch {
	case len(resp.Results) == 0:
		resp.Status = domain.ResponseEmpty
	case resp.Degraded, ranking.Err != nil:
		resp.Status = domain.ResponseDegraded
	}

	logger.Debug("query answered",
		slog.Int("candidates", len(retrieval.Candidates)),
		slog.Int("results", len(resp.Results)),
		slog.String("status", string(resp.Status)),
	)

	if u.cache != nil {
		u.cache.Put(key, resp)
	}
	return resp, nil
}
