package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	apierrors "github.com/avisek/frontend-mentor-solutions/internal/errors"
	"github.com/avisek/frontend-mentor-solutions/internal/registry"
)

func newStore(t *testing.T, manifest string, files ...string) *registry.Store {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, "solutions", filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	mp := filepath.Join(root, "solutions.yaml")
	if err := os.WriteFile(mp, []byte(manifest), 0o600); err != nil {
		t.Fatal(err)
	}
	s := registry.NewStore(mp, filepath.Join(root, "solutions"), registry.Links{Base: "/b/"}, nil)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    HealthResponse
	}{
		{"release", "v1.2.0", HealthResponse{Status: "ok", Version: "v1.2.0", Solutions: 1}},
		{"no version", "", HealthResponse{Status: "ok", Solutions: 1}},
	}
	store := newStore(t, "qr:\n  title: QR\n", "qr/index.html")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewHealthHandler(store, tt.version).Health(context.Background(), HealthRequest{})
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(&tt.want, got); diff != "" {
				t.Errorf("Health() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSolutionHandler_DesignImages(t *testing.T) {
	store := newStore(t, "qr:\n  title: QR\nremote:\n  repoLink: https://example.com/r\n",
		"qr/index.html", "qr/design/b.WEBP", "qr/design/a.avif", "qr/design/readme.md")
	h := NewSolutionHandler(store, "/b/", "design")
	ctx := context.Background()

	got, err := h.DesignImages(ctx, DesignImagesRequest{ID: "qr"})
	if err != nil {
		t.Fatal(err)
	}
	want := &DesignImagesResponse{ID: "qr", Images: []string{"/b/qr/design/a.avif", "/b/qr/design/b.WEBP"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DesignImages() mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		id     string
		status int
	}{
		{"", http.StatusBadRequest},
		{"missing", http.StatusNotFound},
		{"../qr", http.StatusBadRequest},
		// Hosted elsewhere: registered but without a directory.
		{"remote", http.StatusNotFound},
	}
	for _, tt := range tests {
		_, err := h.DesignImages(ctx, DesignImagesRequest{ID: tt.id})
		var apiErr *apierrors.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("%q: expected an APIError, got %v", tt.id, err)
		}
		if apiErr.StatusCode() != tt.status {
			t.Errorf("%q: status = %d, want %d", tt.id, apiErr.StatusCode(), tt.status)
		}
	}
}

func TestSolutionHandler_Registry(t *testing.T) {
	store := newStore(t, "qr:\n  title: QR\n", "qr/index.html")
	raw, err := NewSolutionHandler(store, "/b/", "design").Registry(context.Background(), RegistryRequest{})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := store.Registry().IndentedJSON()
	if diff := cmp.Diff(string(b)+"\n", string(*raw)); diff != "" {
		t.Errorf("Registry() mismatch (-want +got):\n%s", diff)
	}
}
