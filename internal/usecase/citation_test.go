package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexrag/internal/adapter/analyzer"
	"lexrag/internal/adapter/legaltext"
	"lexrag/internal/domain"
)

func ranked(chunks ...domain.Chunk) []domain.RankedChunk {
	out := make([]domain.RankedChunk, len(chunks))
	for i, c := range chunks {
		out[i] = domain.RankedChunk{Chunk: c}
	}
	return out
}

func fragment(idx int, body string) domain.Chunk {
	caput := "Art. 5º São deveres do estudante:"
	content := caput + "\n" + body
	if idx > 0 {
		content = caput + "\n" + legaltext.ContinuationMarker + "\n" + body
	}
	return domain.Chunk{
		ID:              "res@r#art-5/" + string(rune('0'+idx)),
		Content:         content,
		ArticleID:       "Art. 5",
		Source:          "res.md",
		Category:        domain.CategoryResolution,
		Status:          domain.StatusValid,
		ChunkType:       domain.ChunkFragment,
		FragmentIndex:   &idx,
		ParentArticleID: "res@r#art-5",
	}
}

func TestContextBuilder_Render(t *testing.T) {
	b := NewContextBuilder(analyzer.NewTokenizer(false), 0)
	ctx := b.Build("deveres", ranked(
		domain.Chunk{
			ID:        "est@r#art-1",
			Content:   "Art. 1º A universidade goza de autonomia.",
			ArticleID: "Art. 1",
			Source:    "estatuto.md",
			Category:  domain.CategoryStatute,
			Status:    domain.StatusValid,
			Hierarchy: domain.HierarchyPath{{Level: 3, Label: "TÍTULO I", Title: "DA UNIVERSIDADE"}},
		},
		domain.Chunk{
			ID:       "res@r#preamble",
			Content:  "O CONSELHO resolve:",
			Source:   "res.md",
			Category: domain.CategoryResolution,
			Status:   domain.StatusRevoked,
		},
	))

	require.Len(t, ctx.Citations, 2)
	assert.Contains(t, ctx.Text, "[Documento 1]\nFonte: estatuto.md (statute)\nDispositivo: Art. 1\nHierarquia: TÍTULO I - DA UNIVERSIDADE\n")
	assert.Contains(t, ctx.Text, "[Documento 2]\nFonte: res.md (resolution)\nSituação: revogado\n")
	assert.NotContains(t, ctx.Text, "[Documento 2]\nFonte: res.md (resolution)\nDispositivo")
	assert.Greater(t, ctx.UsedTokens, 0)
}

func TestContextBuilder_MergesFragments(t *testing.T) {
	b := NewContextBuilder(analyzer.NewTokenizer(false), 0)
	ctx := b.Build("deveres", ranked(
		fragment(1, "II - zelar pelo patrimônio."),
		domain.Chunk{ID: "other", Content: "Outro texto.", Source: "x.md"},
		fragment(0, "I - frequentar as aulas;"),
	))

	require.Len(t, ctx.Citations, 2)
	merged := ctx.Citations[0]
	assert.Equal(t, []string{"res@r#art-5/0", "res@r#art-5/1"}, merged.ChunkIDs)
	assert.Equal(t, 1, strings.Count(merged.Content, "São deveres do estudante"))
	assert.NotContains(t, merged.Content, legaltext.ContinuationMarker)
	assert.True(t, strings.HasSuffix(merged.Content, "II - zelar pelo patrimônio."))
	assert.Equal(t, 2, ctx.Citations[1].Index)
}

func TestContextBuilder_Budget(t *testing.T) {
	tok := analyzer.NewTokenizer(false)
	long := domain.Chunk{ID: "long", Content: strings.Repeat("palavra ", 40), Source: "a.md"}
	short := domain.Chunk{ID: "short", Content: "prazo de recurso", Source: "b.md"}

	b := NewContextBuilder(tok, 10)
	ctx := b.Build("prazo", ranked(long, short))

	require.Len(t, ctx.Citations, 1)
	assert.Equal(t, []string{"short"}, ctx.Citations[0].ChunkIDs)
	assert.LessOrEqual(t, ctx.UsedTokens, 10)
}

func TestContextBuilder_Empty(t *testing.T) {
	ctx := NewContextBuilder(analyzer.NewTokenizer(false), 100).Build("x", nil)
	assert.Empty(t, ctx.Citations)
	assert.Empty(t, ctx.Text)
	assert.Zero(t, ctx.UsedTokens)
}
