package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lexrag/internal/usecase"
)

var (
	contextQuery  string
	contextBudget int
	contextOutput string
	contextJSON   bool
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Build a citation-annotated context block for a generator",
	Long: `Retrieve and rerank provisions for a question and render them as numbered
documents with source, article and hierarchy, ready to be quoted by an
answer-generation model.

Examples:
  lexrag context -q "quem pode solicitar trancamento"
  lexrag context -q "aproveitamento de estudos" -b 1500 -o context.json --json`,
	RunE: runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
	addQueryFlags(contextCmd)
	contextCmd.Flags().StringVarP(&contextQuery, "query", "q", "", "question (required)")
	contextCmd.Flags().IntVarP(&contextBudget, "budget", "b", 0, "token budget, 0 for no limit")
	contextCmd.Flags().StringVarP(&contextOutput, "output", "o", "", "output file (default: stdout)")
	contextCmd.Flags().BoolVar(&contextJSON, "json", false, "output citations as JSON")
	contextCmd.MarkFlagRequired("query")
}

func runContext(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openExisting(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := s.pipeline().Retrieve(ctx, queryRequest(contextQuery))
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(os.Stderr, "No relevant provisions found.")
		return nil
	}

	cited := usecase.NewContextBuilder(s.tokenizer, contextBudget).Build(resp.Query, resp.Results)

	output := []byte(cited.Text + "\n")
	if contextJSON {
		output, err = json.MarshalIndent(cited, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
	}

	if contextOutput != "" {
		if err := os.WriteFile(contextOutput, output, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Printf("Context written to: %s\n", contextOutput)
		fmt.Printf("  Citations: %d\n", len(cited.Citations))
		fmt.Printf("  Tokens:    %d\n", cited.UsedTokens)
		return nil
	}
	fmt.Print(string(output))
	return nil
}
