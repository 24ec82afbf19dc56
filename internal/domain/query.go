package domain

import "fmt"

// Issue records a recoverable segmentation problem.
type Issue struct {
	DocID  string
	Line   int
	Reason string
	Err    error
}

func (i Issue) Error() string {
	if i.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %v", i.DocID, i.Line, i.Reason, i.Err)
	}
	return fmt.Sprintf("%s: %s: %v", i.DocID, i.Reason, i.Err)
}

func (i Issue) Unwrap() error { return i.Err }

// Segmentation is the Segmenter output for one document.
type Segmentation struct {
	Chunks   []Chunk
	Issues   []Issue
	Fallback bool
}

// Retrieval is the fused first-stage result.
type Retrieval struct {
	Candidates []RetrievalCandidate
	Degraded   bool
	FailedLeg  string
	LegErr     error
}

type Reranking struct {
	Results  []RankedChunk
	Reranked bool
	Err      error
}

type ResponseStatus string

const (
	ResponseOK       ResponseStatus = "ok"
	ResponseDegraded ResponseStatus = "degraded"
	ResponseEmpty    ResponseStatus = "empty"
)

// Response is what a query hands to the generation stage.
type Response struct {
	QueryID   string
	Query     string
	Status    ResponseStatus
	Degraded  bool
	FailedLeg string
	Reranked  bool
	Results   []RankedChunk
}
