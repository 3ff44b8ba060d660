// Package main is the entry point for fmbuild.
//
// fmbuild produces the static site in the output directory: the homepage at
// its root, one directory per published solution, a 404.html next to every
// index.html and the resolved solution registry. It can also preview the
// output the way the static host serves it and print the manifest schema.
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
	"syscall"
	"time"

	"github.com/avisek/frontend-mentor-solutions/internal/build"
	"github.com/avisek/frontend-mentor-solutions/internal/config"
	"github.com/avisek/frontend-mentor-solutions/internal/logging"
	"github.com/avisek/frontend-mentor-solutions/internal/manifest"
	"github.com/avisek/frontend-mentor-solutions/internal/registry"
	"github.com/avisek/frontend-mentor-solutions/internal/server"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "fmbuild: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	cfg := config.Default()
	schema := flag.Bool("schema", false, "Print the manifest JSON Schema and exit")
	serve := flag.Bool("serve", false, "Serve the output directory after building, like the static host does")
	skipBuild := flag.Bool("skip-build", false, "Do not build; only useful with -serve")
	jobs := flag.Int("j", 4, "Number of solutions processed concurrently")
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *schema {
		data, err := manifest.SchemaJSON()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}
	if *skipBuild && !*serve {
		return errors.New("-skip-build requires -serve")
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

	outDir := cfg.Path(cfg.OutDir)
	if !*skipBuild {
		store := registry.NewStore(cfg.Path(cfg.ManifestPath), cfg.Path(cfg.SolutionsDir), cfg.Links(), logger)
		if err := store.Load(); err != nil {
			return fmt.Errorf("failed to load solution registry: %w", err)
		}
		start := time.Now()
		b := build.New(build.Options{
			Root:         cfg.Root,
			OutDir:       outDir,
			Base:         cfg.Base,
			HomepageDir:  cfg.HomepageDir,
			SolutionsDir: cfg.SolutionsDir,
			DesignDir:    config.DesignDir,
			NotFound:     config.NotFoundFile,
			RegistryFile: config.RegistryFile,
			SchemaFile:   config.SchemaFile,
			Registry:     store.Registry(),
			Jobs:         *jobs,
		}, logger)
		if err := b.Build(ctx); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Build done", "dur", time.Since(start).Round(time.Millisecond))
	}
	if !*serve {
		return nil
	}
	return preview(ctx, cfg, outDir)
}

// preview serves outDir under the base path until ctx is canceled.
func preview(ctx context.Context, cfg *config.Config, outDir string) error {
	if fi, err := os.Stat(outDir); err != nil || !fi.IsDir() {
		return fmt.Errorf("nothing to serve in %s; run without -skip-build first", outDir)
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTP,
		Handler:           server.NewStaticSiteHandler(os.DirFS(outDir), cfg.Base, config.NotFoundFile),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Serving build output", "url", "http://"+cfg.HTTP+cfg.Base, "dir", outDir)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}
	return nil
}
