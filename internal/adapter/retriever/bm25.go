package retriever

import (
	"context"
	"math"
	"sort"

	"lexrag/internal/domain"
	"lexrag/internal/port"
)

// BM25Retriever is the sparse leg served from the postings kept in the
// chunk store.
type BM25Retriever struct {
	store     port.IndexStore
	tokenizer port.Tokenizer
	k1        float64
	b         float64
}

func NewBM25Retriever(store port.IndexStore, tokenizer port.Tokenizer, k1, b float64) *BM25Retriever {
	return &BM25Retriever{
		store:     store,
		tokenizer: tokenizer,
		k1:        k1,
		b:         b,
	}
}

// Search scores every chunk sharing a term with query and returns the k best
// that pass filter. Equal scores are ordered by chunk id.
func (r *BM25Retriever) Search(ctx context.Context, query string, k int, filter domain.Filters) ([]domain.Hit, error) {
	queryTokens := r.tokenizer.Tokenize(query)
	if len(queryTokens) == 0 || k <= 0 {
		return nil, nil
	}

	stats, err := r.store.GetStats()
	if err != nil {
		return nil, err
	}
	if stats.TotalChunks == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(queryTokens))
	chunkScores := make(map[string]float64)
	chunkLengths := make(map[string]int)
	N := float64(stats.TotalChunks)

	for _, term := range queryTokens {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		postings, err := r.store.GetPostings(term)
		if err != nil {
			return nil, err
		}

		n := float64(len(postings))
		idf := math.Log((N-n+0.5)/(n+0.5) + 1)

		for _, posting := range postings {
			dl, ok := chunkLengths[posting.ChunkID]
			if !ok {
				chunk, err := r.store.GetChunk(posting.ChunkID)
				if err != nil {
					// Replaced between reading the postings and the chunk.
					chunkLengths[posting.ChunkID] = -1
					continue
				}
				if !filter.MatchChunk(chunk) {
					chunkLengths[posting.ChunkID] = -1
					continue
				}
				dl = len(chunk.Tokens)
				chunkLengths[posting.ChunkID] = dl
			}
			if dl < 0 {
				continue
			}

			tf := float64(posting.TF)
			norm := 1 - r.b
			if stats.AvgChunkLen > 0 {
				norm += r.b * float64(dl) / stats.AvgChunkLen
			}
			chunkScores[posting.ChunkID] += idf * (tf * (r.k1 + 1)) / (tf + r.k1*norm)
		}
	}

	hits := make([]domain.Hit, 0, len(chunkScores))
	for id, score := range chunkScores {
		hits = append(hits, domain.Hit{ChunkID: id, Score: score})
	}
	sortHits(hits)

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func sortHits(hits []domain.Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}
