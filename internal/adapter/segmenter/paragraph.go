package segmenter

import (
	"fmt"
	"regexp"
	"strings"

	"lexrag/internal/adapter/analyzer"
	"lexrag/internal/domain"
)

var blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)

// ParagraphChunker packs blank-line separated paragraphs into chunks of at
// most maxTokens. A paragraph larger than the limit becomes its own chunk.
// It is the fallback for documents without recognisable legal structure.
type ParagraphChunker struct {
	maxTokens int
	tokenizer *analyzer.Tokenizer
}

func NewParagraphChunker(maxTokens int, tokenizer *analyzer.Tokenizer) *ParagraphChunker {
	return &ParagraphChunker{
		maxTokens: maxTokens,
		tokenizer: tokenizer,
	}
}

func (c *ParagraphChunker) Chunk(doc domain.Document) []domain.Chunk {
	content := strings.ReplaceAll(doc.Content, "\r\n", "\n")
	var paragraphs []string
	for _, p := range blankLineRe.Split(content, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []domain.Chunk
	start := 0

	for start < len(paragraphs) {
		end := start
		currentTokens := 0
		var text strings.Builder

		for end < len(paragraphs) {
			paraTokens := c.tokenizer.CountTokens(paragraphs[end])

			if currentTokens > 0 && currentTokens+paraTokens > c.maxTokens {
				break
			}

			if text.Len() > 0 {
				text.WriteString("\n\n")
			}
			text.WriteString(paragraphs[end])
			currentTokens += paraTokens
			end++
		}

		content := text.String()
		chunks = append(chunks, domain.Chunk{
			ID:        chunkID(doc, fmt.Sprintf("p-%d", len(chunks)), nil),
			DocID:     doc.ID,
			Content:   content,
			Source:    doc.Source(),
			Category:  doc.Category,
			Status:    defaultStatus(doc),
			ChunkType: domain.ChunkFallback,
			Tokens:    c.tokenizer.Tokenize(content),
		})
		start = end
	}

	return chunks
}

// chunkID derives a stable id from the document revision, the unit slug and
// the fragment index.
func chunkID(doc domain.Document, slug string, fragment *int) string {
	id := doc.Key() + "#" + slug
	if fragment != nil {
		id += fmt.Sprintf("/%d", *fragment)
	}
	return id
}

func defaultStatus(doc domain.Document) domain.Status {
	if doc.Status == "" {
		return domain.StatusValid
	}
	return doc.Status
}
