package usecase

import (
	"fmt"
	"sort"
	"strings"

	"lexrag/internal/adapter/legaltext"
	"lexrag/internal/domain"
	"lexrag/internal/port"
)

const citationRule = "────────────────────────────────────────"

// Citation is one numbered entry of the context handed to a generator.
type Citation struct {
	Index     int             `json:"index"`
	Source    string          `json:"source"`
	Category  domain.Category `json:"category"`
	ArticleID string          `json:"article_id,omitempty"`
	Hierarchy []string        `json:"hierarchy,omitempty"`
	Status    domain.Status   `json:"status"`
	ChunkIDs  []string        `json:"chunk_ids"`
	Content   string          `json:"content"`
}

// CitedContext is the citation-annotated context block for one query.
type CitedContext struct {
	Query        string     `json:"query"`
	BudgetTokens int        `json:"budget_tokens"`
	UsedTokens   int        `json:"used_tokens"`
	Citations    []Citation `json:"citations"`
	Text         string     `json:"text"`
}

// ContextBuilder packs ranked chunks into a citation block within a token
// budget. A budget of 0 means no limit.
type ContextBuilder struct {
	tokenizer port.Tokenizer
	budget    int
}

func NewContextBuilder(tokenizer port.Tokenizer, budget int) *ContextBuilder {
	return &ContextBuilder{tokenizer: tokenizer, budget: budget}
}

// Build keeps the ranking order, skips chunks that would overflow the
// budget and merges fragments of the same article into one citation.
func (b *ContextBuilder) Build(query string, results []domain.RankedChunk) CitedContext {
	out := CitedContext{
		Query:        query,
		BudgetTokens: b.budget,
		Citations:    []Citation{},
	}

	selected := make([]domain.Chunk, 0, len(results))
	used := 0
	for _, r := range results {
		tokens := b.tokenizer.CountTokens(r.Chunk.Content)
		if b.budget > 0 && used+tokens > b.budget {
			continue
		}
		selected = append(selected, r.Chunk)
		used += tokens
	}

	for i, group := range mergeFragments(selected) {
		out.Citations = append(out.Citations, citation(i+1, group))
	}

	out.Text = BuildContext(out.Citations)
	for _, c := range out.Citations {
		out.UsedTokens += b.tokenizer.CountTokens(c.Content)
	}
	return out
}

// mergeFragments groups fragments sharing a parent article at the position
// of the best-ranked one, ordered by fragment index.
func mergeFragments(chunks []domain.Chunk) [][]domain.Chunk {
	var groups [][]domain.Chunk
	byParent := make(map[string]int)
	for _, c := range chunks {
		if c.ParentArticleID == "" {
			groups = append(groups, []domain.Chunk{c})
			continue
		}
		if i, ok := byParent[c.ParentArticleID]; ok {
			groups[i] = append(groups[i], c)
			continue
		}
		byParent[c.ParentArticleID] = len(groups)
		groups = append(groups, []domain.Chunk{c})
	}
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool {
			return fragmentIndex(g[i]) < fragmentIndex(g[j])
		})
	}
	return groups
}

func fragmentIndex(c domain.Chunk) int {
	if c.FragmentIndex == nil {
		return 0
	}
	return *c.FragmentIndex
}

func citation(index int, group []domain.Chunk) Citation {
	head := group[0]
	ids := make([]string, len(group))
	parts := make([]string, len(group))
	for i, c := range group {
		ids[i] = c.ID
		parts[i] = c.Content
		// Later fragments repeat the caput; keep it once.
		if i > 0 {
			if _, body, ok := strings.Cut(c.Content, legaltext.ContinuationMarker+"\n"); ok {
				parts[i] = body
			}
		}
	}
	return Citation{
		Index:     index,
		Source:    head.Source,
		Category:  head.Category,
		ArticleID: head.ArticleID,
		Hierarchy: head.Hierarchy.Strings(),
		Status:    head.Status,
		ChunkIDs:  ids,
		Content:   strings.Join(parts, "\n"),
	}
}

// BuildContext renders citations as the numbered block a generator quotes
// from.
func BuildContext(citations []Citation) string {
	if len(citations) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, c := range citations {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Documento %d]\nFonte: %s", c.Index, c.Source)
		if c.Category != "" {
			fmt.Fprintf(&sb, " (%s)", c.Category)
		}
		if c.ArticleID != "" {
			fmt.Fprintf(&sb, "\nDispositivo: %s", c.ArticleID)
		}
		if len(c.Hierarchy) > 0 {
			fmt.Fprintf(&sb, "\nHierarquia: %s", strings.Join(c.Hierarchy, " > "))
		}
		if c.Status == domain.StatusRevoked {
			sb.WriteString("\nSituação: revogado")
		}
		sb.WriteString("\n" + citationRule + "\n")
		sb.WriteString(c.Content)
	}
	return sb.String()
}
