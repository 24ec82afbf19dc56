package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"lexrag/internal/domain"
	"lexrag/internal/port"
	"lexrag/internal/usecase"
)

const (
	maxTopK   = 200
	maxFinalK = 50
)

type Handler struct {
	pipeline  Pipeline
	stats     StatsSource
	tokenizer port.Tokenizer
	logger    *slog.Logger
}

func NewHandler(pipeline Pipeline, stats StatsSource, tokenizer port.Tokenizer, logger *slog.Logger) *Handler {
	return &Handler{pipeline: pipeline, stats: stats, tokenizer: tokenizer, logger: logger}
}

// RetrieveRequest is the body of POST /v1/retrieve and POST /v1/context.
type RetrieveRequest struct {
	Query          string   `json:"query"`
	TopK           int      `json:"top_k"`
	FinalK         int      `json:"final_k"`
	IncludeRevoked bool     `json:"include_revoked"`
	Categories     []string `json:"categories"`
	Sources        []string `json:"sources"`
	// Budget caps the context block in tokens; only used by /v1/context.
	Budget int `json:"budget"`
}

func (r RetrieveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Query, validation.Required),
		validation.Field(&r.TopK, validation.Min(0), validation.Max(maxTopK)),
		validation.Field(&r.FinalK, validation.Min(0), validation.Max(maxFinalK)),
		validation.Field(&r.Categories, validation.Each(validation.In(
			string(domain.CategoryStatute),
			string(domain.CategoryBylaw),
			string(domain.CategoryResolution),
		))),
		validation.Field(&r.Budget, validation.Min(0)),
	)
}

func (r RetrieveRequest) request() usecase.Request {
	categories := make([]domain.Category, len(r.Categories))
	for i, c := range r.Categories {
		categories[i] = domain.Category(c)
	}
	return usecase.Request{
		Query:  strings.TrimSpace(r.Query),
		TopK:   r.TopK,
		FinalK: r.FinalK,
		Filters: domain.Filters{
			IncludeRevoked: r.IncludeRevoked,
			Categories:     categories,
			Sources:        r.Sources,
		},
	}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if h.stats != nil {
		stats, err := h.stats.GetStats()
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
			return
		}
		body["documents"] = stats.TotalDocs
		body["chunks"] = stats.TotalChunks
	}
	writeJSON(w, http.StatusOK, body)
}

// Retrieve handles POST /v1/retrieve.
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	resp, err := h.pipeline.Retrieve(r.Context(), req.request())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp.Record())
}

// Context handles POST /v1/context.
func (h *Handler) Context(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	resp, err := h.pipeline.Retrieve(r.Context(), req.request())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cited := usecase.NewContextBuilder(h.tokenizer, req.Budget).Build(resp.Query, resp.Results)
	writeJSON(w, http.StatusOK, map[string]any{
		"query_id": resp.QueryID,
		"status":   resp.Status,
		"reranked": resp.Reranked,
		"context":  cited,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (RetrieveRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return req, false
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return req, false
	}
	return req, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		writeJSON(w, http.StatusBadRequest, errorBody("query is required"))
	case errors.Is(err, domain.ErrIndexUnavailable):
		h.logger.Error("retrieval unavailable",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusServiceUnavailable, errorBody("index unavailable"))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("request cancelled"))
	default:
		h.logger.Error("retrieval failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
