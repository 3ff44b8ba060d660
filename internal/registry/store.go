// Owns the live registry and rebuilds it when its inputs change.

package registry

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/avisek/frontend-mentor-solutions/internal/manifest"
)

// Store holds the current Registry and the two inputs it is derived from.
//
// Readers call Registry, which never blocks. Writers (the reload triggers)
// are serialized; each one rebuilds the whole Registry and swaps it in.
type Store struct {
	manifestPath string
	solutionsDir string
	links        Links
	logger       *slog.Logger

	mu       sync.Mutex
	manifest *manifest.Manifest
	dirs     DirSet
	onChange []func(*Registry)

	current atomic.Pointer[Registry]
}

// NewStore creates an empty Store. Call Load before serving.
func NewStore(manifestPath, solutionsDir string, links Links, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		manifestPath: manifestPath,
		solutionsDir: solutionsDir,
		links:        links,
		logger:       logger,
		manifest:     &manifest.Manifest{Entries: map[string]manifest.Entry{}},
		dirs:         DirSet{},
	}
	s.current.Store(&Registry{byID: map[string]*Solution{}})
	return s
}

// ManifestPath returns the watched manifest file.
func (s *Store) ManifestPath() string {
	return s.manifestPath
}

// SolutionsDir returns the watched solutions directory.
func (s *Store) SolutionsDir() string {
	return s.solutionsDir
}

// Registry returns the current registry snapshot.
func (s *Store) Registry() *Registry {
	return s.current.Load()
}

// OnChange registers fn to be called with every new registry.
func (s *Store) OnChange(fn func(*Registry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Load parses the manifest and lists the solutions directory. A manifest
// that cannot be parsed is fatal.
func (s *Store) Load() error {
	m, err := manifest.Parse(s.manifestPath)
	if err != nil {
		return err
	}
	dirs, err := ReadDirSet(s.solutionsDir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = m
	s.dirs = dirs
	s.recomputeLocked()
	return nil
}

// ReloadManifest re-parses the manifest file. On failure the previous
// registry stays in place and the error is returned.
func (s *Store) ReloadManifest() error {
	m, err := manifest.Parse(s.manifestPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = m
	s.recomputeLocked()
	return nil
}

// AddDir records a new solution directory. It reports whether the set
// changed.
func (s *Store) AddDir(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirs.Has(name) {
		return false
	}
	dirs := s.dirs.Clone()
	dirs[name] = struct{}{}
	s.dirs = dirs
	s.recomputeLocked()
	return true
}

// RemoveDir forgets a solution directory. It reports whether the set
// changed.
func (s *Store) RemoveDir(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirs.Has(name) {
		return false
	}
	dirs := s.dirs.Clone()
	delete(dirs, name)
	s.dirs = dirs
	s.recomputeLocked()
	return true
}

// HasDir reports whether name is a known solution directory.
func (s *Store) HasDir(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs.Has(name)
}

func (s *Store) recomputeLocked() {
	r, warnings := Validate(s.manifest, s.dirs, s.links)
	s.current.Store(r)
	LogWarnings(s.logger, warnings)
	s.logger.Debug("Solution registry rebuilt", "solutions", r.Len(), "warnings", len(warnings))
	for _, fn := range s.onChange {
		fn(r)
	}
}
