package port

import "context"

// Scorer jointly scores (query, passage) pairs.
type Scorer interface {
	// Score returns one relevance score per passage, higher is better.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)

	ModelName() string
}
