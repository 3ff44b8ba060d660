package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// skipEntry reports whether a source entry is never published.
func skipEntry(name string) bool {
	return name == "node_modules" || strings.HasPrefix(name, ".")
}

// copyFile copies src to dst, creating dst's directory.
func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: paths come from walking the site root.
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644) //nolint:gosec // G304: paths come from walking the site root.
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// copyTree copies the directory src into dst. A missing src copies nothing.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == src && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(p, target)
	})
}

// moveTree moves the content of the directory src into dst, merging with
// directories already there and replacing files, then removes src. It
// returns the destination files that were replaced.
func moveTree(src, dst string) ([]string, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return nil, err
	}
	var replaced []string
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if fi, err := os.Stat(to); err == nil && fi.IsDir() {
				r, err := moveTree(from, to)
				replaced = append(replaced, r...)
				if err != nil {
					return replaced, err
				}
				continue
			} else if err == nil {
				return replaced, fmt.Errorf("cannot move directory %s over file %s", from, to)
			}
		} else if _, err := os.Lstat(to); err == nil {
			replaced = append(replaced, to)
		}
		if err := os.Rename(from, to); err != nil {
			return replaced, err
		}
	}
	return replaced, os.Remove(src)
}
