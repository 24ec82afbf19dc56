package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// DataDir is the per-corpus directory holding the index files.
const DataDir = ".lexrag"

// Config holds all configuration for lexrag.
type Config struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Segment   SegmentConfig   `yaml:"segment"`
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Reranker  RerankerConfig  `yaml:"reranker"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CorpusConfig selects the documents to ingest.
type CorpusConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	// Filename marker that flags a whole document as revoked.
	RevokedMarker string `yaml:"revoked_marker"`
	// Directory names treated as resolution-issuing departments.
	Departments []string `yaml:"departments"`
}

// SegmentConfig holds segmentation configuration.
type SegmentConfig struct {
	MaxChunkTokens int `yaml:"max_chunk_tokens"`
}

// IndexConfig holds indexing configuration.
type IndexConfig struct {
	Stemming       bool    `yaml:"stemming"`
	K1             float64 `yaml:"k1"`
	B              float64 `yaml:"b"`
	KeywordBackend string  `yaml:"keyword_backend"` // "bolt", "sqlite"
	VectorBackend  string  `yaml:"vector_backend"`  // "bolt", "qdrant"
	Workers        int     `yaml:"workers"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK         int           `yaml:"top_k"`
	FinalK       int           `yaml:"final_k"`
	LegK         int           `yaml:"leg_k"` // candidates per leg, 0 = top_k
	RRFK         int           `yaml:"rrf_k"`
	DenseWeight  float64       `yaml:"dense_weight"`
	SparseWeight float64       `yaml:"sparse_weight"`
	MinScore     *float64      `yaml:"min_score,omitempty"` // drop reranked results below this score
	CacheSize    int           `yaml:"cache_size"`          // 0 disables the query cache
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"`    // "openai", "ollama", "jina", "hash"
	Model     string `yaml:"model"`       // e.g., "text-embedding-3-large"
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// RerankerConfig holds cross-encoder configuration.
type RerankerConfig struct {
	Provider  string        `yaml:"provider"` // "cohere", "jina", "tei", "overlap", "none"
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

// QdrantConfig holds the Qdrant vector backend configuration.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Collection string `yaml:"collection"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text", "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Includes:      []string{"**/*.md", "**/*.txt"},
			Excludes:      []string{"**/.git/**", "**/" + DataDir + "/**", "**/README.md"},
			RevokedMarker: "REVOGAD",
			Departments:   []string{"PROEN", "PROEX", "PRPPGI", "PROAD", "PRODI"},
		},
		Segment: SegmentConfig{
			MaxChunkTokens: 512,
		},
		Index: IndexConfig{
			Stemming:       true,
			K1:             1.2,
			B:              0.75,
			KeywordBackend: "bolt",
			VectorBackend:  "bolt",
			Workers:        4,
		},
		Retrieve: RetrieveConfig{
			TopK:         50,
			FinalK:       5,
			RRFK:         60,
			DenseWeight:  1.0,
			SparseWeight: 1.0,
			CacheTTL:     5 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Enabled:   false,
			Provider:  "openai",
			Model:     "text-embedding-3-large",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 3072,
			BatchSize: 64,
		},
		Reranker: RerankerConfig{
			Provider:  "overlap",
			Model:     "BAAI/bge-reranker-v2-m3",
			APIKeyEnv: "RERANKER_API_KEY",
			Timeout:   30 * time.Second,
		},
		Qdrant: QdrantConfig{
			URL:        "http://localhost:6333",
			APIKeyEnv:  "QDRANT_API_KEY",
			Collection: "lexrag_chunks",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Segment.Validate(); err != nil {
		return fmt.Errorf("segment: %w", err)
	}
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := c.Retrieve.Validate(); err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := c.Reranker.Validate(); err != nil {
		return fmt.Errorf("reranker: %w", err)
	}
	if c.Index.VectorBackend == "qdrant" {
		if err := c.Qdrant.Validate(); err != nil {
			return fmt.Errorf("qdrant: %w", err)
		}
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func (c *SegmentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxChunkTokens, validation.Required, validation.Min(16)),
	)
}

func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.K1, validation.Min(0.0)),
		validation.Field(&c.B, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.KeywordBackend, validation.Required, validation.In("bolt", "sqlite")),
		validation.Field(&c.VectorBackend, validation.Required, validation.In("bolt", "qdrant")),
		validation.Field(&c.Workers, validation.Min(0)),
	)
}

func (c *RetrieveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TopK, validation.Required, validation.Min(1)),
		validation.Field(&c.FinalK, validation.Required, validation.Min(1)),
		validation.Field(&c.LegK, validation.Min(0)),
		validation.Field(&c.RRFK, validation.Required, validation.Min(1)),
		validation.Field(&c.DenseWeight, validation.Min(0.0)),
		validation.Field(&c.SparseWeight, validation.Min(0.0)),
		validation.Field(&c.CacheSize, validation.Min(0)),
	)
}

func (c *EmbeddingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In("openai", "ollama", "jina", "hash")),
		validation.Field(&c.Dimension, validation.Required, validation.Min(1)),
		validation.Field(&c.BatchSize, validation.Min(0)),
	)
}

func (c *RerankerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In("cohere", "jina", "tei", "overlap", "none")),
	)
}

func (c *QdrantConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.Collection, validation.Required),
	)
}

func (c *LoggingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.In("text", "json")),
	)
}

// Load loads configuration from a YAML file, expanding ${VAR} references
// from the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a corpus directory (looks for lexrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "lexrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, DataDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the path to the chunk store database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, DataDir, "index.db")
}

// KeywordDBPath returns the path to the SQLite keyword index.
func KeywordDBPath(dir string) string {
	return filepath.Join(dir, DataDir, "keywords.sqlite")
}

// EnsureDataDir ensures the data directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, DataDir), 0755)
}
