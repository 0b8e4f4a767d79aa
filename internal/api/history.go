package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/joestump/templatesmith/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// HistoryReader reads recorded generations. *store.GenerationStore satisfies it.
type HistoryReader interface {
	Get(ctx context.Context, id string) (*store.Generation, error)
	ListRecent(ctx context.Context, limit int) ([]*store.Generation, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// historyAPIHandler serves the generation history when a database is configured.
type historyAPIHandler struct {
	history HistoryReader
	logger  *zap.Logger
}

// List returns the most recent generations.
// GET /generations
//
// @Summary      List recent generations
// @Description  Returns the most recent generation records, newest first, with per-status totals.
// @Tags         History
// @Produce      json
// @Param        limit  query     int  false  "Max results (default 50, max 200)"
// @Success      200    {object}  GenerationListResponse
// @Failure      404    {object}  ErrorResponse
// @Failure      500    {object}  ErrorResponse
// @Router       /generations [get]
func (h *historyAPIHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "generation history is disabled")
		return
	}

	gens, err := h.history.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.Error("list generations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	counts, err := h.history.CountByStatus(r.Context())
	if err != nil {
		h.logger.Error("count generations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := GenerationListResponse{
		Generations: make([]GenerationResponse, 0, len(gens)),
		Counts:      counts,
	}
	for _, g := range gens {
		resp.Generations = append(resp.Generations, generationToResponse(g))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single generation record.
// GET /generations/{id}
//
// @Summary      Get a generation
// @Tags         History
// @Produce      json
// @Param        id   path      string  true  "Generation ID"
// @Success      200  {object}  GenerationResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /generations/{id} [get]
func (h *historyAPIHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "generation history is disabled")
		return
	}

	g, err := h.history.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "generation not found")
		return
	}
	if err != nil {
		h.logger.Error("get generation", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, generationToResponse(g))
}

// parseLimit reads ?limit=, defaulting to 50 and silently capping at 200.
func parseLimit(r *http.Request) int {
	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

func generationToResponse(g *store.Generation) GenerationResponse {
	vars := g.Variables
	if vars == nil {
		vars = []string{}
	}
	return GenerationResponse{
		ID:             g.ID,
		Mode:           g.Mode,
		DetailLevel:    g.DetailLevel,
		Variables:      vars,
		DummyData:      g.DummyData,
		Status:         g.Status,
		DurationMS:     g.DurationMS,
		TemplateLength: g.TemplateLength,
		Error:          g.Error,
		CreatedAt:      g.CreatedAt,
	}
}
