// Package handler exposes the ranking service over HTTP.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/runs"
	apperrors "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/logger"
)

// maxRequestBytes bounds a request body; a 500-node matrix in JSON fits
// comfortably.
const maxRequestBytes = 16 << 20

// Ranker computes a ranking for one request.
type Ranker interface {
	Rank(ctx context.Context, req *ranking.Request) (*ranking.Response, error)
}

// CacheAdmin exposes response cache counters and invalidation.
type CacheAdmin interface {
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context) (int64, error)
}

// RunLister pages through recorded ranking runs, newest first.
type RunLister interface {
	List(ctx context.Context, limit, offset int) ([]runs.Run, error)
}

type Handler struct {
	ranker Ranker
	cache  CacheAdmin
	runs   RunLister
	logger *slog.Logger
}

// New creates a Handler. cache and runs may be nil when those backends are
// disabled.
func New(ranker Ranker, cache CacheAdmin, runs RunLister) *Handler {
	return &Handler{
		ranker: ranker,
		cache:  cache,
		runs:   runs,
		logger: slog.Default().With("component", "rank-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/pagerank", h.Rank)
	mux.HandleFunc("POST /api/v1/pagerank", h.Rank)
	mux.HandleFunc("GET /api/v1/runs", h.Runs)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Rank handles a ranking request. An absent or empty JSON object is
// rejected with "No data provided".
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	if len(body) > maxRequestBytes {
		h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	req, err := decodeRequest(body)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), apperrors.PublicMessage(err))
		return
	}

	resp, err := h.ranker.Rank(r.Context(), req)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("ranking request failed", "error", err)
		}
		h.writeError(w, status, apperrors.PublicMessage(err))
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func decodeRequest(body []byte) (*ranking.Request, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, apperrors.Invalid(ranking.MsgNoData)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, apperrors.Invalid("request body must be a JSON object")
	}
	if len(fields) == 0 {
		return nil, apperrors.Invalid(ranking.MsgNoData)
	}
	var req ranking.Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, apperrors.Invalid("field %q has the wrong type", typeErr.Field)
		}
		return nil, apperrors.Invalid("malformed request: %v", err)
	}
	return &req, nil
}

// Runs lists recent ranking runs, newest first.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.runs.List(r.Context(), limit, offset)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("listing runs failed", "error", err)
		}
		h.writeError(w, status, apperrors.PublicMessage(err))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"runs":   list,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
