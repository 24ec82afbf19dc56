package segmenter

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"lexrag/internal/adapter/analyzer"
	"lexrag/internal/domain"
)

func newTestSegmenter(maxTokens int) *LegalSegmenter {
	return NewLegalSegmenter(maxTokens, analyzer.NewTokenizer(false))
}

func testDoc(content string) domain.Document {
	return domain.Document{
		ID:       "res-08-2015",
		Path:     "resolucoes/PROEN/res-08-2015.md",
		Category: domain.CategoryResolution,
		Status:   domain.StatusValid,
		Revision: "r1",
		Content:  content,
	}
}

func TestSegment_PreambleAndArticles(t *testing.T) {
	seg := newTestSegmenter(512)
	out := seg.Segment(testDoc("Preâmbulo... Art. 1º Caput. § 1º Exceção. Art. 2º Outro caput."))

	if out.Fallback || len(out.Issues) != 0 {
		t.Fatalf("expected structured segmentation, got issues %v", out.Issues)
	}
	if len(out.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(out.Chunks))
	}

	want := []struct {
		kind    domain.ChunkType
		article string
		content string
	}{
		{domain.ChunkPreamble, "", "Preâmbulo..."},
		{domain.ChunkArticle, "Art. 1", "Art. 1º Caput. § 1º Exceção."},
		{domain.ChunkArticle, "Art. 2", "Art. 2º Outro caput."},
	}
	for i, w := range want {
		c := out.Chunks[i]
		if c.ChunkType != w.kind {
			t.Errorf("chunk %d: expected type %s, got %s", i, w.kind, c.ChunkType)
		}
		if c.ArticleID != w.article {
			t.Errorf("chunk %d: expected article %q, got %q", i, w.article, c.ArticleID)
		}
		if c.Content != w.content {
			t.Errorf("chunk %d: expected content %q, got %q", i, w.content, c.Content)
		}
		if c.FragmentIndex != nil {
			t.Errorf("chunk %d: non-fragment has fragment index", i)
		}
		if c.Status != domain.StatusValid {
			t.Errorf("chunk %d: expected default status valid, got %s", i, c.Status)
		}
	}
	if out.Chunks[1].ID != "res-08-2015@r1#art-1" {
		t.Errorf("unexpected id %q", out.Chunks[1].ID)
	}
}

func TestSegment_HierarchySnapshot(t *testing.T) {
	content := `TÍTULO I
DO ENSINO
CAPÍTULO I - DOS CURSOS
Art. 1º Os cursos são presenciais.
CAPÍTULO II - DA MATRÍCULA
Art. 2º A matrícula é semestral.
TÍTULO II - DA PESQUISA
Art. 3º A pesquisa é institucional.`

	out := newTestSegmenter(512).Segment(testDoc(content))
	if len(out.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(out.Chunks))
	}

	want := [][]string{
		{"TÍTULO I - DO ENSINO", "CAPÍTULO I - DOS CURSOS"},
		{"TÍTULO I - DO ENSINO", "CAPÍTULO II - DA MATRÍCULA"},
		{"TÍTULO II - DA PESQUISA"},
	}
	for i, w := range want {
		if got := out.Chunks[i].Hierarchy.Strings(); !reflect.DeepEqual(got, w) {
			t.Errorf("chunk %d: expected hierarchy %v, got %v", i, w, got)
		}
	}
	if strings.Contains(out.Chunks[0].Content, "CAPÍTULO II") {
		t.Errorf("heading leaked into previous article: %q", out.Chunks[0].Content)
	}
}

func TestSegment_OversizedArticleFragments(t *testing.T) {
	body := strings.TrimSpace(strings.Repeat("palavra ", 17))
	caput := "Art. 5º O programa observará as seguintes regras:"
	content := caput + "\n§ 1º " + body + "\n§ 2º " + body + "\n§ 3º " + body

	out := newTestSegmenter(40).Segment(testDoc(content))
	if len(out.Chunks) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(out.Chunks))
	}

	ids := make(map[string]bool)
	for i, c := range out.Chunks {
		if c.ChunkType != domain.ChunkFragment {
			t.Errorf("fragment %d: expected type fragment, got %s", i, c.ChunkType)
		}
		if !strings.HasPrefix(c.Content, caput) {
			t.Errorf("fragment %d does not start with the caput: %q", i, c.Content)
		}
		if c.FragmentIndex == nil || *c.FragmentIndex != i {
			t.Errorf("fragment %d: unexpected index %v", i, c.FragmentIndex)
		}
		if c.ParentArticleID != "res-08-2015@r1#art-5" {
			t.Errorf("fragment %d: unexpected parent %q", i, c.ParentArticleID)
		}
		if c.ArticleID != "Art. 5" {
			t.Errorf("fragment %d: unexpected article id %q", i, c.ArticleID)
		}
		if ids[c.ID] {
			t.Errorf("duplicate fragment id %s", c.ID)
		}
		ids[c.ID] = true
	}
	if !strings.Contains(out.Chunks[2].Content, "§ 3º") {
		t.Errorf("last fragment should carry § 3º, got %q", out.Chunks[2].Content)
	}
}

func TestSegment_OversizedArticleWithoutParagraphs(t *testing.T) {
	content := "Art. 9º " + strings.Repeat("texto corrido ", 60)
	out := newTestSegmenter(40).Segment(testDoc(content))
	if len(out.Chunks) != 1 || out.Chunks[0].ChunkType != domain.ChunkArticle {
		t.Fatalf("expected a single article chunk, got %d", len(out.Chunks))
	}
}

func TestSegment_Idempotent(t *testing.T) {
	content := "RESOLUÇÃO Nº 8\nCAPÍTULO I\nArt. 1º Caput:\nI - um;\nII - dois.\nArt. 2º Fim."
	seg := newTestSegmenter(512)

	first := seg.Segment(testDoc(content))
	second := seg.Segment(testDoc(content))
	if !reflect.DeepEqual(first, second) {
		t.Error("segmenting the same document twice produced different output")
	}
}

func TestSegment_RevisionChangesIDs(t *testing.T) {
	seg := newTestSegmenter(512)
	a := testDoc("Art. 1º Texto.")
	b := a
	b.Revision = "r2"

	ca := seg.Segment(a).Chunks
	cb := seg.Segment(b).Chunks
	if ca[0].ID == cb[0].ID {
		t.Errorf("expected new ids for a new revision, got %s twice", ca[0].ID)
	}
}

func TestSegment_FallbackWithoutArticles(t *testing.T) {
	content := "Comunicado da reitoria.\n\nO calendário foi alterado."
	out := newTestSegmenter(512).Segment(testDoc(content))

	if !out.Fallback {
		t.Fatal("expected fallback segmentation")
	}
	if len(out.Issues) != 1 || !errors.Is(out.Issues[0], domain.ErrParseAmbiguity) {
		t.Fatalf("expected one parse ambiguity, got %v", out.Issues)
	}
	for _, c := range out.Chunks {
		if c.ChunkType != domain.ChunkFallback {
			t.Errorf("expected fallback chunk, got %s", c.ChunkType)
		}
		if c.ArticleID != "" {
			t.Errorf("fallback chunk has article id %q", c.ArticleID)
		}
	}
	joined := ""
	for _, c := range out.Chunks {
		joined += c.Content + "\n\n"
	}
	for _, part := range []string{"Comunicado da reitoria.", "O calendário foi alterado."} {
		if !strings.Contains(joined, part) {
			t.Errorf("fallback dropped %q", part)
		}
	}
}

func TestSegment_AmbiguousHeadingFallsBack(t *testing.T) {
	content := "CAPÍTULO DAS NORMAS\nArt. 1º Texto."
	out := newTestSegmenter(512).Segment(testDoc(content))

	if !out.Fallback {
		t.Fatal("expected fallback on ambiguous heading")
	}
	if out.Issues[0].Line != 1 {
		t.Errorf("expected issue on line 1, got %d", out.Issues[0].Line)
	}
	if len(out.Chunks) != 1 || !strings.Contains(out.Chunks[0].Content, "Art. 1º Texto.") {
		t.Errorf("fallback lost content: %+v", out.Chunks)
	}
}

func TestSegment_TrailingHeadingAttachesToLastChunk(t *testing.T) {
	out := newTestSegmenter(512).Segment(testDoc("Art. 1º Texto.\nCAPÍTULO II - DAS DISPOSIÇÕES FINAIS"))
	if len(out.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(out.Chunks))
	}
	if !strings.Contains(out.Chunks[0].Content, "DAS DISPOSIÇÕES FINAIS") {
		t.Errorf("trailing heading dropped: %q", out.Chunks[0].Content)
	}
}

func TestSegment_DuplicateArticleNumbers(t *testing.T) {
	content := "Art. 1º Fica alterada a redação:\n\"Art. 1º Texto novo.\"\nArt. 2º Vigência."
	out := newTestSegmenter(512).Segment(testDoc("Art. 1º Original.\nArt. 1º Repetido.\nArt. 2º Fim."))

	seen := make(map[string]bool)
	for _, c := range out.Chunks {
		if seen[c.ID] {
			t.Errorf("duplicate id %s", c.ID)
		}
		seen[c.ID] = true
	}
	if len(out.Chunks) != 3 {
		t.Errorf("expected 3 chunks, got %d", len(out.Chunks))
	}

	// A quoted article does not start at a line boundary marker and stays in
	// the amending article.
	quoted := newTestSegmenter(512).Segment(testDoc(content))
	if len(quoted.Chunks) != 2 {
		t.Errorf("expected quoted article to stay inline, got %d chunks", len(quoted.Chunks))
	}
}

func TestSegment_EmptyDocument(t *testing.T) {
	out := newTestSegmenter(512).Segment(testDoc("  \n\n "))
	if len(out.Chunks) != 0 || len(out.Issues) != 0 {
		t.Errorf("expected empty segmentation, got %+v", out)
	}
}

func TestSegment_RecordShape(t *testing.T) {
	out := newTestSegmenter(512).Segment(testDoc("CAPÍTULO I - GERAL\nArt. 1º Texto."))
	rec := out.Chunks[0].Record()

	if rec.Metadata.ArticleID == nil || *rec.Metadata.ArticleID != "Art. 1" {
		t.Errorf("unexpected articleId %v", rec.Metadata.ArticleID)
	}
	if rec.Metadata.FragmentIndex != nil || rec.Metadata.ParentArticleID != nil {
		t.Error("article record must have null fragment fields")
	}
	if rec.Metadata.Source != "res-08-2015.md" {
		t.Errorf("unexpected source %q", rec.Metadata.Source)
	}
	if len(rec.Metadata.Hierarchy) != 1 || rec.Metadata.Hierarchy[0] != "CAPÍTULO I - GERAL" {
		t.Errorf("unexpected hierarchy %v", rec.Metadata.Hierarchy)
	}
}
