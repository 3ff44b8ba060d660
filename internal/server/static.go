package server

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/avisek/frontend-mentor-solutions/internal/router"
)

// StaticSiteHandler serves a built site the way a static host does: files
// under the base path, directories through their index.html, and a miss
// through the nearest 404.html above the requested path.
type StaticSiteHandler struct {
	fsys     fs.FS
	base     string
	notFound string
}

// NewStaticSiteHandler creates a handler for the build output fsys published
// under base. notFound is the fallback document name, usually 404.html.
func NewStaticSiteHandler(fsys fs.FS, base, notFound string) *StaticSiteHandler {
	return &StaticSiteHandler{fsys: fsys, base: base, notFound: notFound}
}

// ServeHTTP implements http.Handler for static site routing.
func (h *StaticSiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel, ok := strings.CutPrefix(r.URL.Path, h.base)
	if !ok {
		if r.URL.Path == "/" || r.URL.Path == strings.TrimSuffix(h.base, "/") {
			redirect(w, r, h.base, http.StatusFound)
			return
		}
		http.NotFound(w, r)
		return
	}
	name := strings.TrimPrefix(router.Clean("/"+rel), "/")
	if name == "" {
		name = "."
	}
	if strings.HasSuffix(name, "/") {
		name += "index.html"
	}
	fi, err := fs.Stat(h.fsys, name)
	if err == nil && fi.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		name = path.Join(name, "index.html")
		fi, err = fs.Stat(h.fsys, name)
	}
	if err != nil {
		h.serveNotFound(w, r, name)
		return
	}
	if containsDot(r.URL.Path) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	http.ServeFileFS(w, r, h.fsys, name)
}

// serveNotFound writes the nearest fallback document above name with status
// 404.
func (h *StaticSiteHandler) serveNotFound(w http.ResponseWriter, r *http.Request, name string) {
	for dir := path.Dir(name); ; dir = path.Dir(dir) {
		data, err := fs.ReadFile(h.fsys, path.Join(dir, h.notFound))
		if err == nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write(data)
			return
		}
		if !errors.Is(err, fs.ErrNotExist) {
			slog.ErrorContext(r.Context(), "Failed to read fallback document", "dir", dir, "err", err)
		}
		if dir == "." {
			break
		}
	}
	http.NotFound(w, r)
}

// containsDot checks if a path contains a dot (file extension).
func containsDot(path string) bool {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return false
		}
		if path[i] == '.' {
			return true
		}
	}
	return false
}
