package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lexrag/internal/adapter/analyzer"
	"lexrag/internal/adapter/fs"
	"lexrag/internal/adapter/revocation"
	"lexrag/internal/adapter/segmenter"
	"lexrag/internal/usecase"
)

var segmentCmd = &cobra.Command{
	Use:   "segment <file>...",
	Short: "Segment documents and print their chunk records as JSONL",
	Long: `Segment and annotate the given files without touching the index, writing
one JSON chunk record per line to stdout. Paths are classified relative to
the corpus directory (--dir).

Examples:
  lexrag segment PROEN/resolucao_10_2018.md
  lexrag segment *.md > chunks.jsonl`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSegment,
}

func init() {
	rootCmd.AddCommand(segmentCmd)
}

func runSegment(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	root, err := filepath.Abs(GetRootDir())
	if err != nil {
		return err
	}

	tokenizer := analyzer.NewTokenizer(cfg.Index.Stemming)
	seg := segmenter.NewLegalSegmenter(cfg.Segment.MaxChunkTokens, tokenizer)
	annotator := revocation.NewAnnotator()
	loader := fs.NewLoader(cfg.Corpus)

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	enc := json.NewEncoder(w)

	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}

		doc := loader.Build(rel, string(data))
		result := usecase.Segment(seg, annotator, doc, logger)
		for _, c := range result.Chunks {
			if err := enc.Encode(c.Record()); err != nil {
				return err
			}
		}
	}
	return nil
}
