package segmenter

import (
	"strings"
	"testing"

	"lexrag/internal/adapter/analyzer"
	"lexrag/internal/domain"
)

func TestParagraphChunkerBasic(t *testing.T) {
	tokenizer := analyzer.NewTokenizer(false)
	chunker := NewParagraphChunker(20, tokenizer)

	doc := domain.Document{
		ID:       "aviso",
		Path:     "/corpus/aviso.txt",
		Revision: "r1",
		Status:   domain.StatusRevoked,
		Content: `Primeiro parágrafo com poucas palavras.

Segundo parágrafo também curto.

Terceiro parágrafo bem mais longo que os anteriores e que certamente ultrapassa o limite configurado sozinho.`,
	}

	chunks := chunker.Chunk(doc)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if chunk.ID == "" {
			t.Error("chunk has empty ID")
		}
		if chunk.DocID != "aviso" {
			t.Errorf("expected DocID 'aviso', got '%s'", chunk.DocID)
		}
		if chunk.ChunkType != domain.ChunkFallback {
			t.Errorf("chunk %d: expected fallback type, got %s", i, chunk.ChunkType)
		}
		if chunk.Status != domain.StatusRevoked {
			t.Errorf("chunk %d: expected document status to be inherited", i)
		}
		if len(chunk.Tokens) == 0 {
			t.Errorf("chunk %d has no tokens", i)
		}
	}

	if !strings.Contains(chunks[0].Content, "Segundo parágrafo") {
		t.Errorf("expected the two short paragraphs to be packed together, got %q", chunks[0].Content)
	}
	if chunks[1].ID != "aviso@r1#p-1" {
		t.Errorf("unexpected id %q", chunks[1].ID)
	}
}

func TestParagraphChunkerEmpty(t *testing.T) {
	chunker := NewParagraphChunker(20, analyzer.NewTokenizer(false))
	if chunks := chunker.Chunk(domain.Document{ID: "x", Content: "\n \n"}); len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}
