// Package main is the entry point for the fmsite development server.
//
// fmsite serves the homepage and every solution under the public base path,
// the way the published site lays them out. It keeps the solution registry in
// sync with solutions.yaml and the solutions/ directory, and reloads
// connected browsers when sources change. Configuration is read from CLI
// flags and a .env file in the site root.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/avisek/frontend-mentor-solutions/frontend"
	"github.com/avisek/frontend-mentor-solutions/internal/config"
	"github.com/avisek/frontend-mentor-solutions/internal/livereload"
	"github.com/avisek/frontend-mentor-solutions/internal/logging"
	"github.com/avisek/frontend-mentor-solutions/internal/metrics"
	"github.com/avisek/frontend-mentor-solutions/internal/registry"
	"github.com/avisek/frontend-mentor-solutions/internal/server"
	"github.com/avisek/frontend-mentor-solutions/internal/server/ratelimit"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "fmsite: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	cfg := config.Default()
	version := flag.Bool("version", false, "Print version and exit")
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	logger := logging.New(ll)
	slog.SetDefault(logger)

	if err := cfg.Resolve(flag.CommandLine); err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	ll.Set(level)

	store := registry.NewStore(cfg.Path(cfg.ManifestPath), cfg.Path(cfg.SolutionsDir), cfg.Links(), logger)
	if err := store.Load(); err != nil {
		return fmt.Errorf("failed to load solution registry: %w", err)
	}
	if err := registry.Watch(ctx, store); err != nil {
		return fmt.Errorf("failed to watch solution registry: %w", err)
	}

	m := metrics.New()
	hub := livereload.NewHub()
	m.RegistryChanged(store.Registry().Len(), len(store.Registry().Warnings()))
	store.OnChange(func(r *registry.Registry) {
		m.RegistryChanged(r.Len(), len(r.Warnings()))
		hub.Broadcast(livereload.MessageReload)
	})

	var limiter *ratelimit.Limiter
	if cfg.RateLimit > 0 {
		limiter = ratelimit.PerMinute(cfg.RateLimit)
		defer limiter.Close()
	}

	buildVersion, _, _, _ := getBuildInfo()
	dev := server.NewDevServer(ctx, server.Options{
		Root:         cfg.Root,
		Base:         cfg.Base,
		HomepageDir:  cfg.HomepageDir,
		SolutionsDir: cfg.SolutionsDir,
		DesignDir:    config.DesignDir,
		Store:        store,
		Hub:          hub,
		Metrics:      m,
		Limiter:      limiter,
		ClientScript: frontend.ClientJS,
		Version:      buildVersion,
	})

	// Reload browsers on any source change.
	roots := []string{cfg.Path(cfg.HomepageDir), cfg.Path(cfg.SolutionsDir)}
	if err := livereload.Watch(ctx, roots, func(p string) {
		dev.Invalidate(p)
		n := hub.Broadcast(livereload.MessageReload)
		slog.DebugContext(ctx, "Source changed", "path", p, "clients", n)
	}); err != nil {
		return fmt.Errorf("failed to watch sources: %w", err)
	}

	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP,
		Handler:           server.NewRouter(dev),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "url", "http://"+cfg.HTTP+cfg.Base, "solutions", store.Registry().Len(), "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	// Wait for either context cancellation or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		// Graceful shutdown
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("fmsite %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
