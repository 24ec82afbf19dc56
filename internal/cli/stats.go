package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"lexrag/internal/domain"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openExisting(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.store.GetStats()
	if err != nil {
		return err
	}
	docs, err := s.store.ListDocs()
	if err != nil {
		return err
	}

	byCategory := map[domain.Category]int{}
	revoked := 0
	for _, d := range docs {
		byCategory[d.Category]++
		if d.Status == domain.StatusRevoked {
			revoked++
		}
	}

	fmt.Printf("Documents:   %d (%d revoked)\n", stats.TotalDocs, revoked)
	for _, c := range []domain.Category{domain.CategoryStatute, domain.CategoryBylaw, domain.CategoryResolution} {
		fmt.Printf("  %-11s %d\n", c+":", byCategory[c])
	}
	fmt.Printf("Chunks:      %d\n", stats.TotalChunks)
	fmt.Printf("Avg tokens:  %.1f\n", stats.AvgChunkLen)

	if s.vectors != nil {
		n, err := s.vectors.Count(ctx)
		if err != nil {
			fmt.Printf("Vectors:     unavailable (%v)\n", err)
		} else {
			fmt.Printf("Vectors:     %d (%s)\n", n, s.embedder.ModelName())
		}
	}
	fmt.Printf("Keyword:     %s\n", s.cfg.Index.KeywordBackend)
	if s.scorer != nil {
		fmt.Printf("Reranker:    %s\n", s.scorer.ModelName())
	} else {
		fmt.Printf("Reranker:    none\n")
	}
	return nil
}
