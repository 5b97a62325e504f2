package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/linkrank/internal/runs"
	"github.com/Adithya-Monish-Kumar-K/linkrank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/errors"
)

type fakeCache struct {
	hits, misses int64
	deleted      int64
	err          error
}

func (f *fakeCache) Stats() (int64, int64) { return f.hits, f.misses }

func (f *fakeCache) Invalidate(ctx context.Context) (int64, error) {
	return f.deleted, f.err
}

type fakeRuns struct {
	list      []runs.Run
	gotLimit  int
	gotOffset int
	err       error
}

func (f *fakeRuns) List(ctx context.Context, limit, offset int) ([]runs.Run, error) {
	f.gotLimit, f.gotOffset = limit, offset
	return f.list, f.err
}

type failingRanker struct{}

func (failingRanker) Rank(ctx context.Context, req *ranking.Request) (*ranking.Response, error) {
	return nil, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "Internal server error")
}

func newMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func serve(t *testing.T, mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body["error"]
}

func TestRankMatrix(t *testing.T) {
	svc := ranking.NewService(config.Default().Rank)
	mux := newMux(New(svc, nil, nil))

	for _, path := range []string{"/api/pagerank", "/api/v1/pagerank"} {
		t.Run(path, func(t *testing.T) {
			rec := serve(t, mux, http.MethodPost, path,
				`{"urls":["a","b"],"adjacency_matrix":[[0,1],[1,0]]}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var resp ranking.Response
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if len(resp.Results) != 2 {
				t.Fatalf("results = %d, want 2", len(resp.Results))
			}
			for _, r := range resp.Results {
				if r.Rank < 0.4999 || r.Rank > 0.5001 {
					t.Errorf("rank(%s) = %v, want 0.5", r.URL, r.Rank)
				}
			}
			if resp.Metrics == nil {
				t.Error("metrics missing from response")
			}
		})
	}
}

func TestRankRejectsBadBodies(t *testing.T) {
	svc := ranking.NewService(config.Default().Rank)
	mux := newMux(New(svc, nil, nil))

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"empty body", "", http.StatusBadRequest, ranking.MsgNoData},
		{"null", "null", http.StatusBadRequest, ranking.MsgNoData},
		{"empty object", "{}", http.StatusBadRequest, ranking.MsgNoData},
		{"not an object", `[1,2]`, http.StatusBadRequest, "request body must be a JSON object"},
		{"wrong type", `{"urls":"a"}`, http.StatusBadRequest, `field "urls" has the wrong type`},
		{"no urls", `{"urls":[]}`, http.StatusBadRequest, ranking.MsgNoURLs},
		{"invalid urls", `{"urls":["nope"]}`, http.StatusBadRequest, ranking.MsgNoValidURLs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, mux, http.MethodPost, "/api/pagerank", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if got := errorMessage(t, rec); got != tt.message {
				t.Errorf("error = %q, want %q", got, tt.message)
			}
		})
	}
}

func TestRankInternalErrorIsOpaque(t *testing.T) {
	mux := newMux(New(failingRanker{}, nil, nil))
	rec := serve(t, mux, http.MethodPost, "/api/pagerank", `{"urls":["https://a.example"]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := errorMessage(t, rec); got != "Internal server error" {
		t.Errorf("error = %q", got)
	}
}

func TestRankMethodNotAllowed(t *testing.T) {
	mux := newMux(New(failingRanker{}, nil, nil))
	rec := serve(t, mux, http.MethodGet, "/api/pagerank", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestCacheStats(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rec := serve(t, newMux(New(failingRanker{}, nil, nil)), http.MethodGet, "/api/v1/cache/stats", "")
		var body map[string]string
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body["status"] != "disabled" {
			t.Errorf("body = %v, want status disabled", body)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		c := &fakeCache{hits: 3, misses: 1}
		rec := serve(t, newMux(New(failingRanker{}, c, nil)), http.MethodGet, "/api/v1/cache/stats", "")
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body["hit_rate"] != "75.0%" {
			t.Errorf("hit_rate = %v, want 75.0%%", body["hit_rate"])
		}
		if body["total"] != float64(4) {
			t.Errorf("total = %v, want 4", body["total"])
		}
	})
}

func TestCacheInvalidate(t *testing.T) {
	tests := []struct {
		name   string
		cache  CacheAdmin
		status int
	}{
		{"disabled", nil, http.StatusServiceUnavailable},
		{"ok", &fakeCache{deleted: 2}, http.StatusOK},
		{"backend error", &fakeCache{err: errors.New("redis down")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, newMux(New(failingRanker{}, tt.cache, nil)), http.MethodPost, "/api/v1/cache/invalidate", "")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestRuns(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rec := serve(t, newMux(New(failingRanker{}, nil, nil)), http.MethodGet, "/api/v1/runs", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		store := &fakeRuns{list: []runs.Run{{ID: "r1", Mode: "matrix"}}}
		rec := serve(t, newMux(New(failingRanker{}, nil, store)), http.MethodGet, "/api/v1/runs", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
		}
		if store.gotLimit != 50 || store.gotOffset != 0 {
			t.Errorf("limit, offset = %d, %d; want 50, 0", store.gotLimit, store.gotOffset)
		}
		var body struct {
			Runs []runs.Run `json:"runs"`
		}
		json.Unmarshal(rec.Body.Bytes(), &body)
		if len(body.Runs) != 1 || body.Runs[0].ID != "r1" {
			t.Errorf("runs = %+v", body.Runs)
		}
	})

	t.Run("query params", func(t *testing.T) {
		store := &fakeRuns{}
		serve(t, newMux(New(failingRanker{}, nil, store)), http.MethodGet, "/api/v1/runs?limit=10&offset=20", "")
		if store.gotLimit != 10 || store.gotOffset != 20 {
			t.Errorf("limit, offset = %d, %d; want 10, 20", store.gotLimit, store.gotOffset)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := serve(t, newMux(New(failingRanker{}, nil, &fakeRuns{})), http.MethodGet, "/api/v1/runs?limit=ten", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("store rejects", func(t *testing.T) {
		store := &fakeRuns{err: apperrors.Invalid("limit must be between 1 and 500")}
		rec := serve(t, newMux(New(failingRanker{}, nil, store)), http.MethodGet, "/api/v1/runs?limit=0", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}
