package cli

import (
	"github.com/spf13/cobra"

	"lexrag/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve retrieval over HTTP",
	Long: `Start an HTTP server over an ingested corpus.

Routes:
  GET  /health        index size
  POST /v1/retrieve   ranked chunks for a question
  POST /v1/context    citation block for a generator

Examples:
  lexrag serve
  lexrag serve --addr 127.0.0.1:9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openExisting(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := GetConfig()
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	router := api.NewRouter(s.pipeline(), s.store, s.tokenizer, logger)
	return api.Serve(ctx, addr, router, cfg.Server.ShutdownTimeout, logger)
}
