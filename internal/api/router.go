// Package api serves the retrieval pipeline over HTTP.
package api

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"lexrag/internal/domain"
	"lexrag/internal/logging"
	"lexrag/internal/port"
	"lexrag/internal/usecase"
)

// Pipeline answers one retrieval request.
type Pipeline interface {
	Retrieve(ctx context.Context, req usecase.Request) (domain.Response, error)
}

// StatsSource reports the size of the index for the health endpoint.
type StatsSource interface {
	GetStats() (domain.Stats, error)
}

// NewRouter mounts the health, retrieve and context routes.
func NewRouter(pipeline Pipeline, stats StatsSource, tokenizer port.Tokenizer, logger *slog.Logger) chi.Router {
	h := NewHandler(pipeline, stats, tokenizer, logging.OrDefault(logger))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/retrieve", h.Retrieve)
		r.Post("/context", h.Context)
	})
	return r
}
