package retriever

import (
	"sort"

	"lexrag/internal/domain"
)

const DefaultRRFK = 60

// FusionOptions parameterises reciprocal rank fusion.
type FusionOptions struct {
	K            int
	DenseWeight  float64
	SparseWeight float64
}

func DefaultFusionOptions() FusionOptions {
	return FusionOptions{K: DefaultRRFK, DenseWeight: 1, SparseWeight: 1}
}

// Fuse merges the two legs with reciprocal rank fusion:
//
//	fused(c) = Σ weight(leg) / (K + rank_leg(c))
//
// Ranks are 1-indexed. Candidates are returned by fused score descending;
// ties go to the higher dense score, then the earlier dense rank, then the
// lower chunk id. Candidates are not hydrated.
func Fuse(dense, sparse []domain.Hit, opts FusionOptions) []domain.RetrievalCandidate {
	if opts.K <= 0 {
		opts.K = DefaultRRFK
	}

	byID := make(map[string]*domain.RetrievalCandidate, len(dense)+len(sparse))
	order := make([]string, 0, len(dense)+len(sparse))
	get := func(id string) *domain.RetrievalCandidate {
		c, ok := byID[id]
		if !ok {
			c = &domain.RetrievalCandidate{ChunkID: id}
			byID[id] = c
			order = append(order, id)
		}
		return c
	}

	for i, hit := range dense {
		c := get(hit.ChunkID)
		if c.DenseRank != nil {
			continue
		}
		rank := i + 1
		score := hit.Score
		c.DenseRank = &rank
		c.DenseScore = &score
		c.FusedScore += opts.DenseWeight / float64(opts.K+rank)
	}
	for i, hit := range sparse {
		c := get(hit.ChunkID)
		if c.SparseRank != nil {
			continue
		}
		rank := i + 1
		c.SparseRank = &rank
		c.FusedScore += opts.SparseWeight / float64(opts.K+rank)
	}

	out := make([]domain.RetrievalCandidate, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return fusedLess(out[i], out[j])
	})
	return out
}

// fusedLess reports whether a ranks before b.
func fusedLess(a, b domain.RetrievalCandidate) bool {
	if a.FusedScore != b.FusedScore {
		return a.FusedScore > b.FusedScore
	}
	switch {
	case a.DenseScore != nil && b.DenseScore == nil:
		return true
	case a.DenseScore == nil && b.DenseScore != nil:
		return false
	case a.DenseScore != nil && *a.DenseScore != *b.DenseScore:
		return *a.DenseScore > *b.DenseScore
	}
	if a.DenseRank != nil && b.DenseRank != nil && *a.DenseRank != *b.DenseRank {
		return *a.DenseRank < *b.DenseRank
	}
	return a.ChunkID < b.ChunkID
}
