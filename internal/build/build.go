// Package build produces the static site.
//
// The output is laid out the way it is published: the homepage at the root of
// the output directory and each solution in <id>/, with a 404.html next to
// every index.html so static hosts fall back to the owning app.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/avisek/frontend-mentor-solutions/internal/htmlrewrite"
	"github.com/avisek/frontend-mentor-solutions/internal/manifest"
	"github.com/avisek/frontend-mentor-solutions/internal/registry"
	"github.com/avisek/frontend-mentor-solutions/internal/router"
)

// Options configures a Builder.
type Options struct {
	// Root is the site root on disk.
	Root string
	// OutDir is the output directory on disk. It is deleted and recreated.
	OutDir string
	// Base is the public base path, in "/x/" form.
	Base         string
	HomepageDir  string
	SolutionsDir string
	DesignDir    string
	// NotFound is the fallback document name, usually 404.html.
	NotFound string
	// RegistryFile and SchemaFile name the documents WriteRegistry emits.
	RegistryFile string
	SchemaFile   string
	// Registry selects the solutions to publish.
	Registry *registry.Registry
	// Jobs caps the number of solutions processed concurrently. Defaults to 4.
	Jobs int
}

// Builder runs the build steps.
type Builder struct {
	opts     Options
	rewriter *htmlrewrite.Rewriter
	logger   *slog.Logger
}

// New returns a Builder.
func New(opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Jobs <= 0 {
		opts.Jobs = 4
	}
	rt := router.New(os.DirFS(opts.Root), router.WithDirs(opts.HomepageDir, opts.SolutionsDir))
	return &Builder{
		opts:     opts,
		rewriter: &htmlrewrite.Rewriter{Base: opts.Base, Router: rt, Production: true},
		logger:   logger,
	}
}

// Build runs every step in order and stops at the first error.
func (b *Builder) Build(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"emit", b.Emit},
		{"restructure", b.Restructure},
		{"copy design images", b.CopyDesignImages},
		{"add 404 pages", b.Add404Pages},
		{"write registry", b.WriteRegistry},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.logger.DebugContext(ctx, "Build step", "step", s.name)
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	b.logger.InfoContext(ctx, "Built site", "out", b.opts.OutDir, "solutions", len(b.solutionIDs()))
	return nil
}

// solutionIDs returns the registered solutions that have a directory, in
// manifest order.
func (b *Builder) solutionIDs() []string {
	var ids []string
	for _, id := range b.opts.Registry.IDs() {
		if s, ok := b.opts.Registry.Get(id); ok && s.HasDir {
			ids = append(ids, id)
		}
	}
	return ids
}

// Emit recreates the output directory with the homepage in <out>/homepage/
// and each published solution in <out>/solutions/<id>/. Design directories
// are left out and every HTML document gets its asset URLs rewritten for
// the base path.
func (b *Builder) Emit(ctx context.Context) error {
	ids := b.solutionIDs()
	for _, id := range ids {
		if id == b.opts.HomepageDir || id == b.opts.SolutionsDir {
			return fmt.Errorf("solution id %q collides with the output layout", id)
		}
	}
	if err := os.RemoveAll(b.opts.OutDir); err != nil {
		return fmt.Errorf("failed to clean %s: %w", b.opts.OutDir, err)
	}
	if err := os.MkdirAll(b.opts.OutDir, 0o755); err != nil {
		return err
	}
	if err := b.emitTree(ctx, b.opts.HomepageDir, false); err != nil {
		return err
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(b.opts.Jobs)
	for _, id := range ids {
		eg.Go(func() error {
			return b.emitTree(ctx, path.Join(b.opts.SolutionsDir, id), true)
		})
	}
	return eg.Wait()
}

// emitTree copies the root-relative directory rel into the output.
func (b *Builder) emitTree(ctx context.Context, rel string, skipDesign bool) error {
	src := filepath.Join(b.opts.Root, filepath.FromSlash(rel))
	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == src && os.IsNotExist(err) {
				b.logger.WarnContext(ctx, "Nothing to emit", "dir", rel)
				return filepath.SkipDir
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p != src && skipEntry(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		inner, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDesign && inner == b.opts.DesignDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		docPath := "/" + path.Join(rel, filepath.ToSlash(inner))
		dst := filepath.Join(b.opts.OutDir, filepath.FromSlash(rel), inner)
		if strings.EqualFold(filepath.Ext(p), ".html") {
			return b.emitHTML(p, dst, docPath)
		}
		return copyFile(p, dst)
	})
}

func (b *Builder) emitHTML(src, dst, docPath string) error {
	data, err := os.ReadFile(src) //nolint:gosec // G304: path comes from walking the site root.
	if err != nil {
		return err
	}
	res, err := b.rewriter.Rewrite(data, docPath, "")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, res.HTML, 0o644) //nolint:gosec // G306: published files are world readable.
}

// Restructure flattens the output: the content of <out>/homepage/ and then
// of <out>/solutions/ moves to <out>/.
func (b *Builder) Restructure(ctx context.Context) error {
	for _, dir := range []string{b.opts.HomepageDir, b.opts.SolutionsDir} {
		src := filepath.Join(b.opts.OutDir, dir)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		replaced, err := moveTree(src, b.opts.OutDir)
		for _, r := range replaced {
			b.logger.WarnContext(ctx, "Output file replaced while flattening", "file", r)
		}
		if err != nil {
			return fmt.Errorf("failed to move %s: %w", dir, err)
		}
	}
	return nil
}

// CopyDesignImages copies solutions/<id>/design/ to <out>/<id>/design/ for
// every published solution.
func (b *Builder) CopyDesignImages(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(b.opts.Jobs)
	for _, id := range b.solutionIDs() {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src := filepath.Join(b.opts.Root, b.opts.SolutionsDir, id, b.opts.DesignDir)
			dst := filepath.Join(b.opts.OutDir, id, b.opts.DesignDir)
			if err := copyTree(src, dst); err != nil {
				return fmt.Errorf("failed to copy design images of %s: %w", id, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

// Add404Pages copies every index.html in the output to a sibling fallback
// document.
func (b *Builder) Add404Pages(ctx context.Context) error {
	return filepath.WalkDir(b.opts.OutDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "index.html" {
			return nil
		}
		return copyFile(p, filepath.Join(filepath.Dir(p), b.opts.NotFound))
	})
}

// WriteRegistry writes the compact registry document and the manifest
// schema to the output root.
func (b *Builder) WriteRegistry(ctx context.Context) error {
	data, err := b.opts.Registry.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	if err := os.WriteFile(filepath.Join(b.opts.OutDir, b.opts.RegistryFile), data, 0o644); err != nil { //nolint:gosec // G306: published files are world readable.
		return err
	}
	schema, err := manifest.SchemaJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(b.opts.OutDir, b.opts.SchemaFile), schema, 0o644) //nolint:gosec // G306: published files are world readable.
}
