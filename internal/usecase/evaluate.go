package usecase

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"lexrag/internal/domain"
)

// Expectation names one provision that must appear in the shortlist. An
// empty Article matches any chunk of the document.
type Expectation struct {
	Doc     string `yaml:"doc"`
	Article string `yaml:"article,omitempty"`
}

func (e Expectation) matches(c domain.Chunk) bool {
	if c.DocID != e.Doc {
		return false
	}
	return e.Article == "" || c.ArticleID == e.Article
}

type GoldenQuery struct {
	Query          string        `yaml:"query"`
	IncludeRevoked bool          `yaml:"include_revoked,omitempty"`
	Expect         []Expectation `yaml:"expect"`
}

type GoldenSet struct {
	Queries []GoldenQuery `yaml:"queries"`
}

// LoadGoldenSet reads a YAML file of queries and their expected provisions.
func LoadGoldenSet(path string) (*GoldenSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var set GoldenSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse golden set: %w", err)
	}
	if len(set.Queries) == 0 {
		return nil, fmt.Errorf("golden set %s has no queries", path)
	}
	return &set, nil
}

type QueryScore struct {
	Query string
	// FirstHit is the 1-based rank of the first expected provision, 0 on a miss.
	FirstHit int
	Recall   float64
	Status   domain.ResponseStatus
	Reranked bool
}

type Evaluation struct {
	Queries  []QueryScore
	MRR      float64
	Recall   float64
	HitRate  float64
	Degraded int
}

// Evaluate runs every golden query through the pipeline with the given
// finalK and scores the shortlists.
func Evaluate(ctx context.Context, pipeline *RetrieveUseCase, set *GoldenSet, finalK int) (*Evaluation, error) {
	eval := &Evaluation{}
	for _, q := range set.Queries {
		resp, err := pipeline.Retrieve(ctx, Request{
			Query:   q.Query,
			FinalK:  finalK,
			Filters: domain.Filters{IncludeRevoked: q.IncludeRevoked},
		})
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", q.Query, err)
		}
		eval.Queries = append(eval.Queries, score(q, resp))
	}

	for _, s := range eval.Queries {
		if s.FirstHit > 0 {
			eval.MRR += 1 / float64(s.FirstHit)
			eval.HitRate++
		}
		eval.Recall += s.Recall
		if s.Status == domain.ResponseDegraded {
			eval.Degraded++
		}
	}
	n := float64(len(eval.Queries))
	eval.MRR /= n
	eval.Recall /= n
	eval.HitRate /= n
	return eval, nil
}

func score(q GoldenQuery, resp domain.Response) QueryScore {
	s := QueryScore{Query: q.Query, Status: resp.Status, Reranked: resp.Reranked}
	found := make([]bool, len(q.Expect))
	for rank, r := range resp.Results {
		for i, e := range q.Expect {
			if found[i] || !e.matches(r.Chunk) {
				continue
			}
			found[i] = true
			if s.FirstHit == 0 {
				s.FirstHit = rank + 1
			}
		}
	}
	if len(q.Expect) == 0 {
		return s
	}
	hits := 0
	for _, f := range found {
		if f {
			hits++
		}
	}
	s.Recall = float64(hits) / float64(len(q.Expect))
	return s
}
