package domain

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryStatute    Category = "statute"
	CategoryBylaw      Category = "bylaw"
	CategoryResolution Category = "resolution"
)

type Status string

const (
	StatusValid   Status = "valid"
	StatusRevoked Status = "revoked"
)

type ChunkType string

const (
	ChunkArticle  ChunkType = "article"
	ChunkPreamble ChunkType = "preamble"
	ChunkFragment ChunkType = "fragment"
	ChunkFallback ChunkType = "fallback"
)

type Document struct {
	ID         string
	Path       string
	Title      string
	Category   Category
	Department string
	Status     Status
	Revision   string
	Content    string
	ModTime    time.Time
}

// Source is the citation label of the document, the base name of its path.
func (d Document) Source() string {
	p := d.Path
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	return p
}

// Key identifies one revision of a document. Chunk ids are derived from it,
// so re-ingesting changed content yields a disjoint id set.
func (d Document) Key() string {
	if d.Revision == "" {
		return d.ID
	}
	return d.ID + "@" + d.Revision
}

type HierarchyLevel struct {
	Level int    `json:"level"`
	Label string `json:"label"`
	Title string `json:"title,omitempty"`
}

func (l HierarchyLevel) String() string {
	if l.Title == "" {
		return l.Label
	}
	return l.Label + " - " + l.Title
}

// HierarchyPath lists the enclosing structural headings, outermost first.
type HierarchyPath []HierarchyLevel

func (h HierarchyPath) Strings() []string {
	out := make([]string, len(h))
	for i, l := range h {
		out[i] = l.String()
	}
	return out
}

func (h HierarchyPath) Clone() HierarchyPath {
	if len(h) == 0 {
		return nil
	}
	out := make(HierarchyPath, len(h))
	copy(out, h)
	return out
}

type Chunk struct {
	ID              string
	DocID           string
	Content         string
	ArticleID       string
	Hierarchy       HierarchyPath
	Source          string
	Category        Category
	Status          Status
	ChunkType       ChunkType
	FragmentIndex   *int
	ParentArticleID string
	RevocationNote  string
	Tokens          []string
}

// Revoked reports whether the chunk must be hidden from default retrieval.
func (c Chunk) Revoked() bool {
	return c.Status == StatusRevoked
}

// Filters restricts the candidate set before scoring.
type Filters struct {
	IncludeRevoked bool       `json:"include_revoked"`
	Categories     []Category `json:"categories,omitempty"`
	Sources        []string   `json:"sources,omitempty"`
}

// Match applies the filters to chunk metadata.
func (f Filters) Match(status Status, category Category, source string) bool {
	if status == StatusRevoked && !f.IncludeRevoked {
		return false
	}
	if len(f.Categories) > 0 {
		ok := false
		for _, c := range f.Categories {
			if c == category {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Sources) > 0 {
		ok := false
		for _, s := range f.Sources {
			if s == source {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func (f Filters) MatchChunk(c Chunk) bool {
	return f.Match(c.Status, c.Category, c.Source)
}

// Hit is one entry of a single retrieval leg, in leg order.
type Hit struct {
	ChunkID string
	Score   float64
}

type RetrievalCandidate struct {
	ChunkID     string
	Chunk       Chunk
	DenseRank   *int
	SparseRank  *int
	DenseScore  *float64
	FusedScore  float64
	RerankScore *float64
}

// RankedChunk is one entry of the final shortlist handed to generation.
// RerankScore is nil when the reranker was unavailable.
type RankedChunk struct {
	Chunk       Chunk
	RerankScore *float64
	FusedScore  float64
}

type Posting struct {
	ChunkID string
	TF      int
}

type Stats struct {
	TotalDocs   int
	TotalChunks int
	TotalTokens int
	AvgChunkLen float64
}
