// Package segmenter splits legal documents into retrievable chunks: one chunk
// per article, a preamble chunk for the text before the first article, and
// caput-prefixed fragments for articles that exceed the size limit.
package segmenter

import (
	"fmt"
	"strings"

	"lexrag/internal/adapter/analyzer"
	"lexrag/internal/adapter/legaltext"
	"lexrag/internal/domain"
)

const DefaultMaxTokens = 512

type LegalSegmenter struct {
	maxTokens  int
	tokenizer  *analyzer.Tokenizer
	paragraphs *ParagraphChunker
}

func NewLegalSegmenter(maxTokens int, tokenizer *analyzer.Tokenizer) *LegalSegmenter {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &LegalSegmenter{
		maxTokens:  maxTokens,
		tokenizer:  tokenizer,
		paragraphs: NewParagraphChunker(maxTokens, tokenizer),
	}
}

// draft accumulates one article (or the preamble) while scanning. units[0]
// is the caput; every later unit starts at a paragraph or sub-item marker.
type draft struct {
	kind      domain.ChunkType
	label     string
	slug      string
	hierarchy domain.HierarchyPath
	units     [][]legaltext.Segment
}

func (d *draft) append(seg legaltext.Segment, newUnit bool) {
	if newUnit || len(d.units) == 0 {
		d.units = append(d.units, []legaltext.Segment{seg})
		return
	}
	last := len(d.units) - 1
	d.units[last] = append(d.units[last], seg)
}

func (d *draft) segments() []legaltext.Segment {
	var out []legaltext.Segment
	for _, u := range d.units {
		out = append(out, u...)
	}
	return out
}

func (s *LegalSegmenter) Segment(doc domain.Document) domain.Segmentation {
	if strings.TrimSpace(doc.Content) == "" {
		return domain.Segmentation{}
	}

	segs, ambiguities := legaltext.Scan(doc.Content)

	var issues []domain.Issue
	for _, a := range ambiguities {
		issues = append(issues, domain.Issue{
			DocID:  doc.ID,
			Line:   a.Line,
			Reason: fmt.Sprintf("unparseable heading %q", a.Text),
			Err:    domain.ErrParseAmbiguity,
		})
	}
	if !hasArticle(segs) {
		issues = append(issues, domain.Issue{
			DocID:  doc.ID,
			Reason: "no article markers",
			Err:    domain.ErrParseAmbiguity,
		})
	}
	if len(issues) > 0 {
		return domain.Segmentation{
			Chunks:   s.paragraphs.Chunk(doc),
			Issues:   issues,
			Fallback: true,
		}
	}

	drafts := s.collect(segs)

	var chunks []domain.Chunk
	for _, d := range drafts {
		chunks = append(chunks, s.emit(doc, d)...)
	}
	return domain.Segmentation{Chunks: chunks}
}

func hasArticle(segs []legaltext.Segment) bool {
	for _, seg := range segs {
		if seg.Kind == legaltext.Article {
			return true
		}
	}
	return false
}

// collect walks the segments with an explicit heading stack and groups them
// into drafts in document order.
func (s *LegalSegmenter) collect(segs []legaltext.Segment) []*draft {
	var (
		stack    domain.HierarchyPath
		drafts   []*draft
		current  *draft
		preamble *draft
		pending  []legaltext.Segment
		seen     = make(map[string]int)
	)

	for _, seg := range segs {
		switch seg.Kind {
		case legaltext.Heading:
			for len(stack) > 0 && stack[len(stack)-1].Level >= seg.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, domain.HierarchyLevel{Level: seg.Level, Label: seg.Label, Title: seg.Title})
			pending = append(pending, seg)

		case legaltext.Article:
			slug := legaltext.ArticleSlug(seg.Label)
			seen[slug]++
			if n := seen[slug]; n > 1 {
				slug = fmt.Sprintf("%s.%d", slug, n)
			}
			current = &draft{
				kind:      domain.ChunkArticle,
				label:     seg.Label,
				slug:      slug,
				hierarchy: stack.Clone(),
			}
			current.append(seg, true)
			drafts = append(drafts, current)
			pending = nil

		default:
			target := current
			if target == nil {
				if preamble == nil {
					preamble = &draft{kind: domain.ChunkPreamble, slug: "preamble", hierarchy: stack.Clone()}
					drafts = append(drafts, preamble)
				}
				target = preamble
			}
			target.append(seg, seg.Kind == legaltext.Paragraph || seg.Kind == legaltext.Item)
		}
	}

	// Headings after the last article have no article to describe; keep
	// their text on the last chunk rather than dropping it.
	if len(pending) > 0 && len(drafts) > 0 {
		last := drafts[len(drafts)-1]
		for _, seg := range pending {
			last.append(seg, false)
		}
	}

	return drafts
}

func (s *LegalSegmenter) emit(doc domain.Document, d *draft) []domain.Chunk {
	content := legaltext.Join(d.segments())

	base := domain.Chunk{
		DocID:     doc.ID,
		ArticleID: d.label,
		Hierarchy: d.hierarchy,
		Source:    doc.Source(),
		Category:  doc.Category,
		Status:    defaultStatus(doc),
		ChunkType: d.kind,
	}

	var bodies [][]legaltext.Segment
	if d.kind == domain.ChunkArticle && len(d.units) > 1 && s.tokenizer.CountTokens(content) > s.maxTokens {
		bodies = s.pack(d.units)
	}
	if len(bodies) < 2 {
		c := base
		c.ID = chunkID(doc, d.slug, nil)
		c.Content = content
		c.Tokens = s.tokenizer.Tokenize(content)
		return []domain.Chunk{c}
	}

	parent := chunkID(doc, d.slug, nil)
	caput := legaltext.Join(d.units[0])

	chunks := make([]domain.Chunk, 0, len(bodies))
	for i, body := range bodies {
		idx := i
		text := legaltext.Join(body)
		if i > 0 {
			text = caput + "\n" + legaltext.ContinuationMarker + "\n" + text
		}
		c := base
		c.ID = chunkID(doc, d.slug, &idx)
		c.Content = text
		c.ChunkType = domain.ChunkFragment
		c.FragmentIndex = &idx
		c.ParentArticleID = parent
		c.Tokens = s.tokenizer.Tokenize(text)
		c.Hierarchy = d.hierarchy.Clone()
		chunks = append(chunks, c)
	}
	return chunks
}

// pack groups units greedily into fragment bodies. The first body starts
// with the caput; later bodies are prefixed with the caput on emission, so
// their budget starts at the caput size. Every body holds at least one unit.
func (s *LegalSegmenter) pack(units [][]legaltext.Segment) [][]legaltext.Segment {
	caputTokens := s.tokenizer.CountTokens(legaltext.Join(units[0]))

	var bodies [][]legaltext.Segment
	body := append([]legaltext.Segment(nil), units[0]...)
	tokens := caputTokens

	for _, u := range units[1:] {
		ut := s.tokenizer.CountTokens(legaltext.Join(u))
		if len(body) > 0 && tokens+ut > s.maxTokens {
			bodies = append(bodies, body)
			body = nil
			tokens = caputTokens
		}
		body = append(body, u...)
		tokens += ut
	}
	return append(bodies, body)
}
