package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lexrag/internal/domain"
	"lexrag/internal/usecase"
)

var (
	benchGolden string
	benchFinalK int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Score retrieval quality against a golden query set",
	Long: `Run every query of a golden set through the pipeline and report the rank
of the first expected provision, recall and mean reciprocal rank.

The golden set is YAML:

  queries:
    - query: prazo para trancamento de matrícula
      expect:
        - doc: PROEN/resolucao_10_2018
          article: Art. 1

Examples:
  lexrag bench -g golden.yaml
  lexrag bench -g golden.yaml -n 10`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringVarP(&benchGolden, "golden", "g", "", "golden set file (required)")
	benchCmd.Flags().IntVarP(&benchFinalK, "final-k", "n", 0, "results kept after reranking (default from config)")
	benchCmd.MarkFlagRequired("golden")
}

func runBench(cmd *cobra.Command, args []string) error {
	set, err := usecase.LoadGoldenSet(benchGolden)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openExisting(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	eval, err := usecase.Evaluate(ctx, s.pipeline(), set, benchFinalK)
	if err != nil {
		return err
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Reranker: %s\n", s.cfg.Reranker.Provider)
	fmt.Printf("Keyword:  %s\n\n", s.cfg.Index.KeywordBackend)

	for i, q := range eval.Queries {
		rank := "miss"
		if q.FirstHit > 0 {
			rank = fmt.Sprintf("@%d", q.FirstHit)
		}
		flags := ""
		if q.Status != domain.ResponseOK {
			flags += " [" + string(q.Status) + "]"
		}
		if !q.Reranked {
			flags += " [fused order]"
		}
		fmt.Printf("%2d. %-5s recall %.2f  %s%s\n", i+1, rank, q.Recall, q.Query, flags)
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  MRR:      %.3f\n", eval.MRR)
	fmt.Printf("  Recall:   %.3f\n", eval.Recall)
	fmt.Printf("  Hit rate: %.3f\n", eval.HitRate)
	if eval.Degraded > 0 {
		fmt.Printf("  Degraded: %d queries ran on a single leg\n", eval.Degraded)
	}
	return nil
}
