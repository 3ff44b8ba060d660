package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	apierrors "github.com/avisek/frontend-mentor-solutions/internal/errors"
)

type echoRequest struct {
	Name  string `path:"name"`
	Limit int    `query:"limit"`
	All   bool   `query:"all"`
	Q     string `query:"q"`
}

type echoResponse struct {
	Name  string `json:"name"`
	Limit int    `json:"limit"`
	All   bool   `json:"all"`
	Q     string `json:"q"`
}

func echo(ctx context.Context, req echoRequest) (*echoResponse, error) {
	if req.Q == "fail" {
		return nil, apierrors.SolutionNotFound(req.Name)
	}
	if req.Q == "boom" {
		return nil, context.DeadlineExceeded
	}
	return &echoResponse{Name: req.Name, Limit: req.Limit, All: req.All, Q: req.Q}, nil
}

func TestWrap(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /echo/{name}", Wrap(echo))

	tests := []struct {
		name   string
		target string
		status int
		want   map[string]any
	}{
		{
			"binds path and query",
			"/echo/qr?limit=3&all=true&q=x",
			http.StatusOK,
			map[string]any{"name": "qr", "limit": float64(3), "all": true, "q": "x"},
		},
		{
			"zero values",
			"/echo/qr",
			http.StatusOK,
			map[string]any{"name": "qr", "limit": float64(0), "all": false, "q": ""},
		},
		{
			"bad integer",
			"/echo/qr?limit=lots",
			http.StatusBadRequest,
			map[string]any{"error": map[string]any{"code": "VALIDATION_FAILED", "message": `invalid integer for limit: "lots"`}},
		},
		{
			"bad boolean",
			"/echo/qr?all=maybe",
			http.StatusBadRequest,
			map[string]any{"error": map[string]any{"code": "VALIDATION_FAILED", "message": `invalid boolean for all: "maybe"`}},
		},
		{
			"api error",
			"/echo/qr?q=fail",
			http.StatusNotFound,
			map[string]any{
				"error":   map[string]any{"code": "SOLUTION_NOT_FOUND", "message": `solution "qr" not found`},
				"details": map[string]any{"id": "qr"},
			},
		},
		{
			"plain error",
			"/echo/qr?q=boom",
			http.StatusInternalServerError,
			map[string]any{"error": map[string]any{"code": "INTERNAL_ERROR", "message": "context deadline exceeded"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.target, http.NoBody))
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var got map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWrap_RawMessage(t *testing.T) {
	doc := "{\n  \"a\": 1\n}\n"
	h := Wrap(func(ctx context.Context, req struct{}) (*json.RawMessage, error) {
		raw := json.RawMessage(doc)
		return &raw, nil
	})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if w.Body.String() != doc {
		t.Errorf("body = %q, want %q", w.Body.String(), doc)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}
}
