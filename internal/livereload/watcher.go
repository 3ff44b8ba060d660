// Recursive source tree watcher.

package livereload

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// skipDir reports whether a directory is never watched.
func skipDir(name string) bool {
	return name == "node_modules" || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}

// Watch watches every directory under roots until ctx is canceled and calls
// onChange with the path of each created, written, removed or renamed file.
// Directories created later are watched as they appear.
func Watch(ctx context.Context, roots []string, onChange func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range roots {
		if err := addTree(w, root); err != nil {
			_ = w.Close()
			return fmt.Errorf("failed to watch %s: %w", root, err)
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
				if strings.HasPrefix(filepath.Base(event.Name), ".") {
					continue
				}
				if event.Has(fsnotify.Create) {
					if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() && !skipDir(fi.Name()) {
						if err := addTree(w, event.Name); err != nil {
							slog.WarnContext(ctx, "Failed to watch new directory", "path", event.Name, "err", err)
						}
					}
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					onChange(event.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching sources", "err", err)
			}
		}
	}()
	return nil
}

// addTree watches root and its subdirectories. A missing root is ignored.
func addTree(w *fsnotify.Watcher, root string) error {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
