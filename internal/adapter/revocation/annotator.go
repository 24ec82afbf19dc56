// Package revocation decides the validity status of each chunk.
//
// The document status is the default. An article whose own caput carries a
// revocation note is downgraded to revoked; nothing is ever upgraded, and
// phrases that revoke some other instrument ("Fica revogada a Resolução nº
// 5/2010") leave the chunk untouched.
package revocation

import (
	"regexp"
	"strings"

	"lexrag/internal/adapter/legaltext"
	"lexrag/internal/domain"
)

var (
	// Art. 5º (Revogado), Art. 5º (Revogada pela Resolução nº 10/2018). The
	// note must open the caput; a parenthetical further on cites another
	// provision.
	noteRe = regexp.MustCompile(`(?i)^\W*art\.?\s*\d+\S*?\s*[-–—.:]?\s*(\(\s*(?:(?:artigo|dispositivo)\s+)?revogad[oa]\b\s*(?:(?:pel[oa]|por|em|conforme|nos\s+termos)\b[^()]{0,160})?\))`)

	// Art. 5º Revogado.
	bareRe = regexp.MustCompile(`(?i)^\W*art\.?\s*\d+\S*\s*[-–—.:]?\s*revogad[oa]\s*\.?\s*$`)

	// Esta Resolução foi revogada pela ...
	selfRe = regexp.MustCompile(`(?i)\b(?:este|esta|o\s+presente|a\s+presente)\s+(?:artigo|dispositivo|resolu[çc][ãa]o|regimento|estatuto|norma|portaria|instru[çc][ãa]o\s+normativa)\s+(?:foi|fica|est[áa]|encontra-se)\s+revogad[oa]`)
)

type Annotator struct{}

func NewAnnotator() *Annotator {
	return &Annotator{}
}

// Annotate returns annotated copies of chunks; the input slice is not modified.
func (a *Annotator) Annotate(doc domain.Document, chunks []domain.Chunk) []domain.Chunk {
	def := doc.Status
	if def == "" {
		def = domain.StatusValid
	}

	out := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		if c.Status == "" || def == domain.StatusRevoked {
			c.Status = def
		}
		if c.Status != domain.StatusRevoked {
			if note := ScopedMarker(c); note != "" {
				c.Status = domain.StatusRevoked
				c.RevocationNote = note
			}
		}
		out[i] = c
	}
	return out
}

// ScopedMarker returns the revocation note that applies to the chunk itself,
// or "" when none is found.
func ScopedMarker(c domain.Chunk) string {
	switch c.ChunkType {
	case domain.ChunkArticle, domain.ChunkFragment:
		head := strings.TrimSpace(legaltext.Head(c.Content))
		if m := noteRe.FindStringSubmatch(head); m != nil {
			return m[1]
		}
		if bareRe.MatchString(head) {
			return head
		}
		return selfRe.FindString(head)
	default:
		return selfRe.FindString(c.Content)
	}
}
