// Serves the source tree as one site, the way the production build lays it
// out.

package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/avisek/frontend-mentor-solutions/internal/htmlrewrite"
	"github.com/avisek/frontend-mentor-solutions/internal/livereload"
	"github.com/avisek/frontend-mentor-solutions/internal/metrics"
	"github.com/avisek/frontend-mentor-solutions/internal/registry"
	"github.com/avisek/frontend-mentor-solutions/internal/router"
	"github.com/avisek/frontend-mentor-solutions/internal/server/ratelimit"
)

// ToolPrefix is the path under the base reserved for the dev server's own
// endpoints. The router passes "/@" paths through untouched.
const ToolPrefix = "@fmsite/"

// scriptTypes overrides the MIME type of source files browsers load as
// modules; mime.TypeByExtension maps .ts to MPEG transport streams.
var scriptTypes = map[string]string{
	".ts":  "text/javascript; charset=utf-8",
	".mts": "text/javascript; charset=utf-8",
	".tsx": "text/javascript; charset=utf-8",
	".jsx": "text/javascript; charset=utf-8",
}

// Options configures a DevServer.
type Options struct {
	// Root is the site root on disk.
	Root string
	// Base is the public base path, in "/x/" form.
	Base         string
	HomepageDir  string
	SolutionsDir string
	DesignDir    string

	Store   *registry.Store
	Hub     *livereload.Hub
	Metrics *metrics.Metrics
	// Limiter, when set, limits requests per client IP.
	Limiter *ratelimit.Limiter
	// ClientScript is the live reload client served at {base}@fmsite/client.js.
	ClientScript []byte
	// CacheSize caps the number of read-ahead files. Defaults to 256.
	CacheSize int
	// Version is reported by the health endpoint.
	Version string
}

// DevServer serves the homepage and every solution under one base path.
type DevServer struct {
	opts     Options
	router   *router.Router
	rewriter *htmlrewrite.Rewriter
	cache    *Cache
	// warmCtx bounds the read-ahead goroutines to the server's lifetime.
	warmCtx context.Context
}

// NewDevServer creates a DevServer. ctx bounds background work started by
// requests.
func NewDevServer(ctx context.Context, opts Options) *DevServer {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Hub == nil {
		opts.Hub = livereload.NewHub()
	}
	rt := router.New(os.DirFS(opts.Root), router.WithDirs(opts.HomepageDir, opts.SolutionsDir))
	rw := &htmlrewrite.Rewriter{Base: opts.Base, Router: rt}
	if len(opts.ClientScript) > 0 {
		rw.ClientScript = opts.Base + ToolPrefix + "client.js"
	}
	return &DevServer{
		opts:     opts,
		router:   rt,
		rewriter: rw,
		cache:    NewCache(opts.CacheSize),
		warmCtx:  ctx,
	}
}

// Cache returns the read-ahead cache.
func (s *DevServer) Cache() *Cache {
	return s.cache
}

// Invalidate drops the cached copy of the file or directory at p, a path on
// disk as reported by the file watcher.
func (s *DevServer) Invalidate(p string) {
	rel, err := filepath.Rel(s.opts.Root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	s.cache.Invalidate("/" + filepath.ToSlash(rel))
}

// serveSite serves everything under the base that is not an endpoint.
func (s *DevServer) serveSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rel, ok := strings.CutPrefix(r.URL.Path, s.opts.Base)
	if !ok {
		http.NotFound(w, r)
		return
	}
	p := router.Clean("/" + rel)
	if id := p[1:]; id != "" && !strings.Contains(id, "/") {
		if sol, ok := s.opts.Store.Registry().Get(id); ok && sol.HasDir {
			s.opts.Metrics.Request(router.Solution.String())
			redirect(w, r, s.opts.Base+id+"/", http.StatusMovedPermanently)
			return
		}
	}
	route := s.router.Classify(p)
	s.opts.Metrics.Request(route.Kind.String())
	src := route.Path
	if strings.HasSuffix(src, "/") {
		src += "index.html"
	}
	slog.DebugContext(ctx, "Routed", "path", p, "src", src, "kind", route.Kind.String())
	if path.Ext(src) == ".html" {
		s.serveHTML(w, r, src)
		return
	}
	s.serveFile(w, r, src)
}

// serveHTML rewrites the document at src and schedules a read-ahead of the
// scripts and stylesheets it references.
func (s *DevServer) serveHTML(w http.ResponseWriter, r *http.Request, src string) {
	ctx := r.Context()
	data, err := os.ReadFile(s.diskPath(src))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(ctx, "Failed to read document", "src", src, "err", err)
		http.Error(w, "failed to read document", http.StatusInternalServerError)
		return
	}
	start := time.Now()
	res, err := s.rewriter.Rewrite(data, src, r.URL.Path)
	s.opts.Metrics.ObserveRewrite(time.Since(start))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to transform HTML", "src", src, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, d := range res.Diagnostics {
		slog.DebugContext(ctx, "Suppressed HTML diagnostic", "src", src, "diag", d.String())
	}
	if len(res.Prefetch) > 0 {
		go s.warm(res.Prefetch)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(res.HTML)
}

// warm reads srcs into the cache.
func (s *DevServer) warm(srcs []string) {
	for _, src := range srcs {
		if s.warmCtx.Err() != nil {
			return
		}
		if _, ok := s.cache.Get(src); ok {
			continue
		}
		e, err := s.read(src)
		if err != nil {
			// The browser request will report it.
			slog.DebugContext(s.warmCtx, "Read-ahead skipped", "src", src, "err", err)
			continue
		}
		s.cache.Set(src, e)
	}
}

func (s *DevServer) read(src string) (*CacheEntry, error) {
	f, err := os.Open(s.diskPath(src))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: src, Err: errors.New("is a directory")}
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &CacheEntry{Data: data, ModTime: fi.ModTime()}, nil
}

func (s *DevServer) serveFile(w http.ResponseWriter, r *http.Request, src string) {
	e, ok := s.cache.Get(src)
	if !ok {
		fi, err := os.Stat(s.diskPath(src))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if fi.IsDir() {
			redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		if e, err = s.read(src); err != nil {
			slog.ErrorContext(r.Context(), "Failed to read file", "src", src, "err", err)
			http.Error(w, "failed to read file", http.StatusInternalServerError)
			return
		}
	}
	if ct, ok := scriptTypes[path.Ext(src)]; ok {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, path.Base(src), e.ModTime, bytes.NewReader(e.Data))
}

// diskPath maps a root-relative source path to the file system.
func (s *DevServer) diskPath(src string) string {
	return filepath.Join(s.opts.Root, filepath.FromSlash(strings.TrimPrefix(src, "/")))
}

// redirect sends the client to target, keeping the query string.
func redirect(w http.ResponseWriter, r *http.Request, target string, code int) {
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, code)
}
