package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lexrag/config"
	"lexrag/internal/domain"
	"lexrag/internal/usecase"
)

var (
	queryText     string
	queryTopK     int
	queryFinalK   int
	queryRevoked  bool
	queryCategory []string
	querySources  []string
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve the most relevant provisions for a question",
	Long: `Run hybrid retrieval (dense + keyword, fused by reciprocal rank fusion)
followed by a cross-encoder rerank, and print the final ranked chunks.
Revoked provisions are excluded unless --include-revoked is set.

Examples:
  lexrag query -q "prazo para trancamento de matrícula"
  lexrag query -q "bolsas de extensão" --category resolution --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	addQueryFlags(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question (required)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

// addQueryFlags registers the retrieval flags shared by query and context.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "fused candidates kept after retrieval (default from config)")
	cmd.Flags().IntVarP(&queryFinalK, "final-k", "n", 0, "results kept after reranking (default from config)")
	cmd.Flags().BoolVar(&queryRevoked, "include-revoked", false, "include revoked provisions")
	cmd.Flags().StringSliceVar(&queryCategory, "category", nil, "restrict to categories (statute, bylaw, resolution)")
	cmd.Flags().StringSliceVar(&querySources, "source", nil, "restrict to source file names")
}

func queryRequest(text string) usecase.Request {
	categories := make([]domain.Category, 0, len(queryCategory))
	for _, c := range queryCategory {
		categories = append(categories, domain.Category(strings.ToLower(c)))
	}
	return usecase.Request{
		Query:  text,
		TopK:   queryTopK,
		FinalK: queryFinalK,
		Filters: domain.Filters{
			IncludeRevoked: queryRevoked,
			Categories:     categories,
			Sources:        querySources,
		},
	}
}

// openExisting opens the stack of an already ingested corpus.
func openExisting(ctx context.Context) (*stack, error) {
	dir := GetRootDir()
	if _, err := os.Stat(config.IndexDBPath(dir)); os.IsNotExist(err) {
		return nil, fmt.Errorf("no index found. Run 'lexrag ingest' first")
	}
	return openStack(ctx, dir, GetConfig(), logger)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openExisting(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := s.pipeline().Retrieve(ctx, queryRequest(queryText))
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if queryJSON {
		output, err := json.MarshalIndent(resp.Record(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if resp.Status == domain.ResponseEmpty {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n", len(resp.Results), resp.Query)
	if resp.Degraded {
		fmt.Printf("(degraded: %s retrieval unavailable)\n", resp.FailedLeg)
	}
	switch {
	case !resp.Reranked && resp.Status == domain.ResponseDegraded && !resp.Degraded:
		fmt.Println("(degraded: reranker unavailable, fused order)")
	case !resp.Reranked:
		fmt.Println("(not reranked: fused order)")
	}
	fmt.Println()

	for i, r := range resp.Results {
		c := r.Chunk
		label := c.Source
		if c.ArticleID != "" {
			label += " " + c.ArticleID
		}
		score := fmt.Sprintf("fused: %.4f", r.FusedScore)
		if r.RerankScore != nil {
			score = fmt.Sprintf("rerank: %.3f, %s", *r.RerankScore, score)
		}
		fmt.Printf("--- [%d] %s (%s) ---\n", i+1, label, score)
		if len(c.Hierarchy) > 0 {
			fmt.Println(strings.Join(c.Hierarchy.Strings(), " > "))
		}
		text := c.Content
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}
	return nil
}
