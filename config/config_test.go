package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Segment.MaxChunkTokens != 512 {
		t.Errorf("expected MaxChunkTokens=512, got %d", cfg.Segment.MaxChunkTokens)
	}
	if cfg.Retrieve.TopK != 50 {
		t.Errorf("expected TopK=50, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.FinalK != 5 {
		t.Errorf("expected FinalK=5, got %d", cfg.Retrieve.FinalK)
	}
	if cfg.Retrieve.RRFK != 60 {
		t.Errorf("expected RRFK=60, got %d", cfg.Retrieve.RRFK)
	}
	if cfg.Index.K1 != 1.2 {
		t.Errorf("expected K1=1.2, got %f", cfg.Index.K1)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "lexrag.yaml")

	content := `
segment:
  max_chunk_tokens: 256
index:
  stemming: false
retrieve:
  top_k: 10
  cache_ttl: 30s
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Segment.MaxChunkTokens != 256 {
		t.Errorf("expected MaxChunkTokens=256, got %d", cfg.Segment.MaxChunkTokens)
	}
	if cfg.Index.Stemming != false {
		t.Errorf("expected Stemming=false, got %v", cfg.Index.Stemming)
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.CacheTTL != 30*time.Second {
		t.Errorf("expected CacheTTL=30s, got %s", cfg.Retrieve.CacheTTL)
	}
	if cfg.Retrieve.FinalK != 5 {
		t.Errorf("expected unspecified FinalK to keep its default, got %d", cfg.Retrieve.FinalK)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("LEXRAG_TEST_QDRANT", "http://qdrant:6333")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "lexrag.yaml")
	content := `
index:
  vector_backend: qdrant
qdrant:
  url: ${LEXRAG_TEST_QDRANT}
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Qdrant.URL != "http://qdrant:6333" {
		t.Errorf("expected expanded URL, got %q", cfg.Qdrant.URL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "lexrag.yaml")
	content := `
index:
  keyword_backend: elastic
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected validation error for unknown keyword backend")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, DataDir, "config.yaml")

	content := `
retrieve:
  final_k: 8
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retrieve.FinalK != 8 {
		t.Errorf("expected FinalK=8, got %d", cfg.Retrieve.FinalK)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexrag.yaml")
	cfg := DefaultConfig()
	cfg.Reranker.Provider = "tei"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Reranker.Provider != "tei" {
		t.Errorf("expected provider tei, got %q", loaded.Reranker.Provider)
	}
}

func TestIndexDBPath(t *testing.T) {
	path := IndexDBPath("/srv/corpus")
	expected := filepath.Join("/srv/corpus", ".lexrag", "index.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}
