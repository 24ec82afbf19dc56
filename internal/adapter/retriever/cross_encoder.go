package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"lexrag/config"
	"lexrag/internal/port"
)

// NewScorer builds the scorer selected by cfg. It returns nil for the
// "none" provider.
func NewScorer(cfg config.RerankerConfig, tokenizer port.Tokenizer) (port.Scorer, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "overlap":
		return NewOverlapScorer(tokenizer), nil
	case "cohere", "jina", "tei":
		apiKey := ""
		if cfg.APIKeyEnv != "" {
			apiKey = os.Getenv(cfg.APIKeyEnv)
		}
		ce, err := NewCrossEncoder(CrossEncoderOptions{
			Provider: cfg.Provider,
			Model:    cfg.Model,
			APIKey:   apiKey,
			BaseURL:  cfg.BaseURL,
			Timeout:  cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return ce, nil
	default:
		return nil, fmt.Errorf("unknown reranker provider: %s", cfg.Provider)
	}
}

type CrossEncoderOptions struct {
	Provider string // "cohere", "jina", "tei"
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// CrossEncoder scores passages through a hosted cross-encoder. Cohere and
// Jina share a request shape; TEI serves the model locally and needs no key.
type CrossEncoder struct {
	provider string
	model    string
	apiKey   string
	endpoint string
	client   *http.Client
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

type teiRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type teiResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func NewCrossEncoder(opts CrossEncoderOptions) (*CrossEncoder, error) {
	var defaultURL, path string
	switch opts.Provider {
	case "cohere":
		defaultURL, path = "https://api.cohere.ai", "/v1/rerank"
	case "jina":
		defaultURL, path = "https://api.jina.ai", "/v1/rerank"
	case "tei":
		defaultURL, path = "http://localhost:8081", "/rerank"
	default:
		return nil, fmt.Errorf("unknown cross-encoder provider: %s", opts.Provider)
	}
	if opts.Provider != "tei" && opts.APIKey == "" {
		return nil, fmt.Errorf("%s reranker requires an API key", opts.Provider)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &CrossEncoder{
		provider: opts.Provider,
		model:    opts.Model,
		apiKey:   opts.APIKey,
		endpoint: strings.TrimRight(baseURL, "/") + path,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Score returns one score per passage in input order.
func (c *CrossEncoder) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	var payload any
	if c.provider == "tei" {
		payload = teiRequest{Query: query, Texts: passages}
	} else {
		payload = rerankRequest{Model: c.model, Query: query, Documents: passages, TopN: len(passages)}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	scores := make([]float64, len(passages))
	filled := make([]bool, len(passages))
	set := func(index int, score float64) error {
		if index < 0 || index >= len(passages) {
			return fmt.Errorf("result index %d out of range", index)
		}
		scores[index] = score
		filled[index] = true
		return nil
	}

	if c.provider == "tei" {
		var results []teiResult
		if err := json.Unmarshal(body, &results); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		for _, res := range results {
			if err := set(res.Index, res.Score); err != nil {
				return nil, err
			}
		}
	} else {
		var parsed rerankResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		for _, res := range parsed.Results {
			if err := set(res.Index, res.RelevanceScore); err != nil {
				return nil, err
			}
		}
	}

	for i, ok := range filled {
		if !ok {
			return nil, fmt.Errorf("no score returned for passage %d", i)
		}
	}
	return scores, nil
}

func (c *CrossEncoder) ModelName() string {
	return c.provider + ":" + c.model
}

// OverlapScorer scores a passage by the share of distinct query terms it
// contains. It needs no external service.
type OverlapScorer struct {
	tokenizer port.Tokenizer
}

func NewOverlapScorer(tokenizer port.Tokenizer) *OverlapScorer {
	return &OverlapScorer{tokenizer: tokenizer}
}

func (s *OverlapScorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	queryTerms := termSet(s.tokenizer.Tokenize(query))
	scores := make([]float64, len(passages))
	if len(queryTerms) == 0 {
		return scores, nil
	}

	for i, passage := range passages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docTerms := termSet(s.tokenizer.Tokenize(passage))
		matches := 0
		for term := range queryTerms {
			if _, ok := docTerms[term]; ok {
				matches++
			}
		}
		scores[i] = float64(matches) / float64(len(queryTerms))
	}
	return scores, nil
}

func (s *OverlapScorer) ModelName() string {
	return "term-overlap"
}

func termSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
