package server

import (
	"net/http"

	"github.com/avisek/frontend-mentor-solutions/internal/metrics"
	"github.com/avisek/frontend-mentor-solutions/internal/server/handlers"
	"github.com/avisek/frontend-mentor-solutions/internal/server/ratelimit"
)

// NewRouter creates and configures the HTTP router of the dev server.
func NewRouter(s *DevServer) http.Handler {
	mux := http.NewServeMux()
	base := s.opts.Base

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(s.opts.Store, s.opts.Version)
	solutionHandler := handlers.NewSolutionHandler(s.opts.Store, base, s.opts.DesignDir)

	// Registry endpoints
	mux.Handle("GET "+base+"solutions.json", s.endpoint(Wrap(solutionHandler.Registry)))
	mux.Handle("GET "+base+"solutions.schema.json", s.endpoint(Wrap(solutionHandler.Schema)))
	mux.Handle("GET "+base+"design-images", s.endpoint(Wrap(solutionHandler.DesignImages)))

	// Tooling endpoints
	tools := base + ToolPrefix
	mux.Handle("GET "+tools+"health", s.endpoint(Wrap(healthHandler.Health)))
	mux.Handle("GET "+tools+"reload", s.endpoint(s.opts.Hub))
	mux.Handle("GET "+tools+"client.js", s.endpoint(http.HandlerFunc(s.serveClient)))
	mux.Handle("GET "+tools+"metrics", s.endpoint(s.opts.Metrics.Handler()))

	// Everything else under the base is the site itself.
	mux.HandleFunc(base, s.serveSite)
	if base != "/" {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/" {
				redirect(w, r, base, http.StatusFound)
				return
			}
			http.NotFound(w, r)
		})
	}

	return RequestLogger(ratelimit.Middleware(s.opts.Limiter, mux))
}

// endpoint counts requests to the dev server's own endpoints.
func (s *DevServer) endpoint(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.opts.Metrics.Request(metrics.RouteEndpoint)
		h.ServeHTTP(w, r)
	})
}

func (s *DevServer) serveClient(w http.ResponseWriter, r *http.Request) {
	if len(s.opts.ClientScript) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(s.opts.ClientScript)
}
