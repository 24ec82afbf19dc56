package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"lexrag/config"
	"lexrag/internal/adapter/analyzer"
	"lexrag/internal/adapter/cache"
	"lexrag/internal/adapter/embedding"
	"lexrag/internal/adapter/fs"
	"lexrag/internal/adapter/fts"
	"lexrag/internal/adapter/qdrant"
	"lexrag/internal/adapter/retriever"
	"lexrag/internal/adapter/revocation"
	"lexrag/internal/adapter/segmenter"
	"lexrag/internal/adapter/store"
	"lexrag/internal/port"
	"lexrag/internal/usecase"
)

// stack is every backend of one corpus directory, wired from config.
type stack struct {
	cfg       *config.Config
	logger    *slog.Logger
	tokenizer *analyzer.Tokenizer

	store    *store.BoltStore
	fts      *fts.Index
	keyword  port.KeywordIndex
	embedder port.Embedder
	vectors  port.VectorIndex
	scorer   port.Scorer
	cache    *cache.QueryCache
}

// openStack opens the chunk store under dir and the configured keyword and
// vector backends. The caller must Close it.
func openStack(ctx context.Context, dir string, cfg *config.Config, logger *slog.Logger) (*stack, error) {
	if err := config.EnsureDataDir(dir); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.NewBoltStore(config.IndexDBPath(dir))
	if err != nil {
		return nil, fmt.Errorf("open chunk store: %w", err)
	}

	s := &stack{
		cfg:       cfg,
		logger:    logger,
		tokenizer: analyzer.NewTokenizer(cfg.Index.Stemming),
		store:     st,
	}
	if err := s.wire(ctx, dir); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *stack) wire(ctx context.Context, dir string) error {
	cfg := s.cfg

	switch cfg.Index.KeywordBackend {
	case "sqlite":
		ix, err := fts.Open(config.KeywordDBPath(dir), s.tokenizer)
		if err != nil {
			return err
		}
		s.fts = ix
		s.keyword = ix
	default:
		s.keyword = retriever.NewBM25Retriever(s.store, s.tokenizer, cfg.Index.K1, cfg.Index.B)
	}

	if cfg.Embedding.Enabled {
		emb, err := embedding.New(cfg.Embedding, s.tokenizer)
		if err != nil {
			return fmt.Errorf("embedding: %w", err)
		}
		s.embedder = emb

		switch cfg.Index.VectorBackend {
		case "qdrant":
			q := qdrant.NewStorage(qdrant.Config{
				URL:        cfg.Qdrant.URL,
				APIKey:     os.Getenv(cfg.Qdrant.APIKeyEnv),
				Collection: cfg.Qdrant.Collection,
			})
			if err := q.Init(ctx, emb.Dimension()); err != nil {
				return fmt.Errorf("qdrant: %w", err)
			}
			s.vectors = q
		default:
			vs, err := store.NewBoltVectorStore(s.store.DB(), emb.Dimension())
			if err != nil {
				return fmt.Errorf("vector store: %w", err)
			}
			s.vectors = vs
		}
	}

	scorer, err := retriever.NewScorer(cfg.Reranker, s.tokenizer)
	if err != nil {
		return fmt.Errorf("reranker: %w", err)
	}
	s.scorer = scorer

	if cfg.Retrieve.CacheSize > 0 {
		s.cache = cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL)
	}
	return nil
}

func (s *stack) Close() error {
	var errs []error
	if s.fts != nil {
		errs = append(errs, s.fts.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

func (s *stack) loader() *fs.Loader {
	return fs.NewLoader(s.cfg.Corpus)
}

func (s *stack) segmenter() port.Segmenter {
	return segmenter.NewLegalSegmenter(s.cfg.Segment.MaxChunkTokens, s.tokenizer)
}

func (s *stack) indexer(progress func(processed, total int, path string)) *usecase.IndexUseCase {
	opts := usecase.IndexOptions{
		Vectors:   s.vectors,
		Embedder:  s.embedder,
		Workers:   s.cfg.Index.Workers,
		BatchSize: s.cfg.Embedding.BatchSize,
		Logger:    s.logger,
		Progress:  progress,
	}
	if s.fts != nil {
		opts.Keyword = s.fts
	}
	if s.cache != nil {
		opts.Cache = s.cache
	}
	return usecase.NewIndexUseCase(s.store, s.loader(), s.segmenter(), revocation.NewAnnotator(), opts)
}

func (s *stack) pipeline() *usecase.RetrieveUseCase {
	var dense port.DenseIndex
	if s.vectors != nil {
		dense = retriever.NewDenseRetriever(s.embedder, s.vectors)
	}

	rc := s.cfg.Retrieve
	hybrid := retriever.NewHybridRetriever(dense, s.keyword, s.store, retriever.HybridOptions{
		Fusion: retriever.FusionOptions{
			K:            rc.RRFK,
			DenseWeight:  rc.DenseWeight,
			SparseWeight: rc.SparseWeight,
		},
		LegK: rc.LegK,
	}, s.logger)
	reranker := retriever.NewReranker(s.scorer, rc.MinScore, s.logger)

	return usecase.NewRetrieveUseCase(hybrid, reranker, s.cache, rc.TopK, rc.FinalK, s.logger)
}
