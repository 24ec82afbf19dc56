package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"lexrag/internal/port"
)

// HashEmbedder maps analyzer tokens into a fixed number of buckets and
// L2-normalises the counts. Texts sharing stems land close together, which
// is enough for offline runs and tests without an embedding service.
type HashEmbedder struct {
	dimension int
	tokenizer port.Tokenizer
}

func NewHashEmbedder(dimension int, tokenizer port.Tokenizer) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{dimension: dimension, tokenizer: tokenizer}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := make([]float32, e.dimension)
		for _, tok := range e.tokenizer.Tokenize(text) {
			h := fnv.New32a()
			h.Write([]byte(tok))
			v[h.Sum32()%uint32(e.dimension)]++
		}
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		if norm > 0 {
			inv := float32(1 / math.Sqrt(norm))
			for j := range v {
				v[j] *= inv
			}
		}
		embeddings[i] = v
	}
	return embeddings, nil
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return "hash"
}
