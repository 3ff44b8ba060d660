// Rebuilds the registry on manifest edits and solution directory changes.

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch starts watching the Store's manifest file and solutions directory
// until ctx is canceled. Every relevant event rebuilds the registry; events
// are not coalesced.
func Watch(ctx context.Context, s *Store) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	manifestPath := filepath.Clean(s.ManifestPath())
	solutionsDir := filepath.Clean(s.SolutionsDir())
	// Watch the parent directory: editors often replace the file on save.
	for _, dir := range []string{filepath.Dir(manifestPath), solutionsDir} {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
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
				handleEvent(ctx, s, manifestPath, solutionsDir, event)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching solutions", "err", err)
			}
		}
	}()
	return nil
}

func handleEvent(ctx context.Context, s *Store, manifestPath, solutionsDir string, event fsnotify.Event) {
	name := filepath.Clean(event.Name)
	if name == manifestPath {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		if err := s.ReloadManifest(); err != nil {
			slog.ErrorContext(ctx, "Failed to reload manifest, keeping previous registry", "err", err)
			return
		}
		slog.InfoContext(ctx, "Manifest reloaded", "solutions", s.Registry().Len())
		return
	}
	if filepath.Dir(name) != solutionsDir {
		return
	}
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return
	}
	switch {
	case event.Has(fsnotify.Create):
		if fi, err := os.Stat(name); err == nil && fi.IsDir() {
			if s.AddDir(base) {
				slog.InfoContext(ctx, "Solution directory added", "id", base)
			}
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if s.RemoveDir(base) {
			slog.InfoContext(ctx, "Solution directory removed", "id", base)
		}
	}
}
