package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"lexrag/config"
)

var ingestForce bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Segment and index a corpus of legal documents",
	Long: `Segment every document of the corpus into articles, annotate revoked
provisions and index the chunks for keyword and semantic retrieval.
The index is stored in .lexrag/ within the corpus directory. Unchanged
documents are skipped; removed documents are dropped from the index.

Examples:
  lexrag ingest .              # Index current directory
  lexrag ingest ./normas       # Index a specific corpus
  lexrag ingest . --force      # Rebuild from scratch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "drop the existing index and rebuild it")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	ctx := cmd.Context()
	cfg := GetConfig()

	s, err := openStack(ctx, path, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	migration, err := s.store.CheckMigration(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}

	bar := newIngestBar()
	indexer := s.indexer(bar.update)

	switch {
	case migration.NeedsRebuild || ingestForce:
		reason := migration.Reason
		if ingestForce {
			reason = "--force"
		}
		fmt.Printf("Index rebuild required: %s\n", reason)
		if err := indexer.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset index: %w", err)
		}
		if err := s.store.Clear(); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
	case migration.NeedsMigration:
		fmt.Printf("Running schema migration: %s\n", migration.Reason)
	}
	if err := s.store.Migrate(cfg); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Printf("Scanning %s...\n", path)
	result, err := indexer.Index(ctx, path)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Files indexed:  %d\n", result.FilesIndexed)
	fmt.Printf("  Files skipped:  %d (unchanged)\n", result.FilesSkipped)
	fmt.Printf("  Files deleted:  %d (removed)\n", result.FilesDeleted)
	fmt.Printf("  Chunks created: %d\n", result.ChunksCreated)
	if result.Vectors > 0 {
		fmt.Printf("  Embeddings:     %d\n", result.Vectors)
	}
	if result.Fallbacks > 0 {
		fmt.Printf("  Fallbacks:      %d documents (structure not recognised)\n", result.Fallbacks)
	}
	if result.Issues > 0 {
		fmt.Printf("  Parse issues:   %d\n", result.Issues)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\nIndex stored at: %s\n", filepath.Join(path, config.DataDir))
	return nil
}

// ingestBar is created lazily once the number of files is known.
type ingestBar struct {
	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	start time.Time
}

func newIngestBar() *ingestBar {
	return &ingestBar{}
}

func (b *ingestBar) update(processed, total int, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar == nil {
		b.start = time.Now()
		b.bar = progressbar.NewOptions(total,
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Println()
			}),
		)
	}

	b.bar.Set(processed)

	elapsed := time.Since(b.start)
	if rate := float64(processed) / elapsed.Seconds(); rate > 0 {
		eta := time.Duration(float64(total-processed)/rate) * time.Second
		b.bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
