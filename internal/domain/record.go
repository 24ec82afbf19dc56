package domain

// ChunkRecord is the persisted/exported shape of a chunk.
type ChunkRecord struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata RecordMetadata `json:"metadata"`
}

type RecordMetadata struct {
	Hierarchy       []string  `json:"hierarchy"`
	Source          string    `json:"source"`
	Category        Category  `json:"category"`
	Status          Status    `json:"status"`
	ArticleID       *string   `json:"articleId"`
	ChunkType       ChunkType `json:"chunkType"`
	FragmentIndex   *int      `json:"fragmentIndex"`
	ParentArticleID *string   `json:"parentArticleId"`
	RevocationNote  string    `json:"revocationNote,omitempty"`
}

func (c Chunk) Record() ChunkRecord {
	hierarchy := c.Hierarchy.Strings()
	if hierarchy == nil {
		hierarchy = []string{}
	}
	return ChunkRecord{
		ID:      c.ID,
		Content: c.Content,
		Metadata: RecordMetadata{
			Hierarchy:       hierarchy,
			Source:          c.Source,
			Category:        c.Category,
			Status:          c.Status,
			ArticleID:       optional(c.ArticleID),
			ChunkType:       c.ChunkType,
			FragmentIndex:   c.FragmentIndex,
			ParentArticleID: optional(c.ParentArticleID),
			RevocationNote:  c.RevocationNote,
		},
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RankedRecord is the exported shape of one ranked chunk.
type RankedRecord struct {
	Chunk       ChunkRecord `json:"chunk"`
	RerankScore *float64    `json:"rerankScore"`
	FusedScore  float64     `json:"fusedScore"`
}

// ResponseRecord is the exported shape of a query response.
type ResponseRecord struct {
	QueryID   string         `json:"queryId"`
	Query     string         `json:"query"`
	Status    ResponseStatus `json:"status"`
	Degraded  bool           `json:"degraded"`
	FailedLeg string         `json:"failedLeg,omitempty"`
	Reranked  bool           `json:"reranked"`
	Results   []RankedRecord `json:"results"`
}

func (r Response) Record() ResponseRecord {
	out := ResponseRecord{
		QueryID:   r.QueryID,
		Query:     r.Query,
		Status:    r.Status,
		Degraded:  r.Degraded,
		FailedLeg: r.FailedLeg,
		Reranked:  r.Reranked,
		Results:   make([]RankedRecord, 0, len(r.Results)),
	}
	for _, rc := range r.Results {
		out.Results = append(out.Results, RankedRecord{
			Chunk:       rc.Chunk.Record(),
			RerankScore: rc.RerankScore,
			FusedScore:  rc.FusedScore,
		})
	}
	return out
}
