// Package registry reconciles the solutions manifest with the solution
// directories on disk and holds the resolved result.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/avisek/frontend-mentor-solutions/internal/manifest"
)

// DirSet is the set of solution directory names found on disk.
type DirSet map[string]struct{}

// NewDirSet returns a DirSet holding names.
func NewDirSet(names ...string) DirSet {
	d := make(DirSet, len(names))
	for _, n := range names {
		d[n] = struct{}{}
	}
	return d
}

// ReadDirSet lists the direct child directories of dir. Hidden directories
// are skipped.
func ReadDirSet(dir string) (DirSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list solutions directory: %w", err)
	}
	d := make(DirSet, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			d[e.Name()] = struct{}{}
		}
	}
	return d, nil
}

// Has reports whether name is in the set.
func (d DirSet) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// Clone returns a copy of the set.
func (d DirSet) Clone() DirSet {
	c := make(DirSet, len(d))
	for k := range d {
		c[k] = struct{}{}
	}
	return c
}

// Sorted returns the names in lexical order.
func (d DirSet) Sorted() []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Links holds the patterns used to fill links an entry does not declare.
type Links struct {
	// Base is the URL prefix the whole site is published under, e.g.
	// "/frontend-mentor-solutions/".
	Base string
	// RepoTreeURL is the browsable URL of the solutions directory in the
	// source repository. The id is appended.
	RepoTreeURL string
	// LiveURL is the URL the site is deployed at. The id is appended.
	LiveURL string
}

// Solution is a fully resolved manifest entry.
type Solution struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Stacks        []string `json:"stacks"`
	PreviewImage  string   `json:"previewImage"`
	ChallengeLink string   `json:"challengeLink"`
	SolutionLink  string   `json:"solutionLink"`
	RepoLink      string   `json:"repoLink"`
	LiveLink      string   `json:"liveLink"`
	// HasDir is false for manifest-only entries hosted elsewhere.
	HasDir bool `json:"-"`
}

// WarningKind classifies manifest/directory drift.
type WarningKind string

const (
	// WarnUndeclared means a directory exists without a manifest entry.
	WarnUndeclared WarningKind = "undeclared"
	// WarnMissingDirectory means an entry has neither a directory nor an
	// explicit repository link.
	WarnMissingDirectory WarningKind = "missing-directory"
)

// Warning is a non-fatal validation diagnostic.
type Warning struct {
	Kind    WarningKind
	ID      string
	Message string
}

func (w Warning) String() string {
	return w.Message
}

// Registry is the validated view of all solutions. It is immutable once
// built.
type Registry struct {
	ids      []string
	byID     map[string]*Solution
	warnings []Warning
}

// Get returns the solution registered under id.
func (r *Registry) Get(id string) (*Solution, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// IDs returns the registered ids in manifest order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.ids)
}

// Len returns the number of registered solutions.
func (r *Registry) Len() int {
	return len(r.ids)
}

// Warnings returns the diagnostics emitted while building the registry.
func (r *Registry) Warnings() []Warning {
	return slices.Clone(r.warnings)
}

// MarshalJSON encodes the registry as an object keyed by id, in manifest
// order.
func (r *Registry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range r.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.byID[id])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// IndentedJSON returns the registry as indented JSON, as served by the dev
// server.
func (r *Registry) IndentedJSON() ([]byte, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Validate reconciles the manifest with the directories on disk.
//
// Entries without a directory are kept only when they declare a repoLink.
// Directories without an entry are dropped. Drift never fails the whole
// validation; it is reported as warnings.
func Validate(m *manifest.Manifest, dirs DirSet, links Links) (*Registry, []Warning) {
	r := &Registry{byID: make(map[string]*Solution, m.Len())}
	for _, id := range m.Order {
		e := m.Entries[id]
		hasDir := dirs.Has(id)
		if !hasDir && e.RepoLink == "" {
			r.warnings = append(r.warnings, Warning{
				Kind:    WarnMissingDirectory,
				ID:      id,
				Message: fmt.Sprintf("declared solution %q not found in solutions directory", id),
			})
			continue
		}
		r.ids = append(r.ids, id)
		r.byID[id] = resolve(id, &e, hasDir, links)
	}
	for _, id := range dirs.Sorted() {
		if _, ok := m.Entries[id]; ok {
			continue
		}
		r.warnings = append(r.warnings, Warning{
			Kind:    WarnUndeclared,
			ID:      id,
			Message: fmt.Sprintf("found solution directory %q that has not been added to the manifest", id),
		})
	}
	return r, r.Warnings()
}

func resolve(id string, e *manifest.Entry, hasDir bool, links Links) *Solution {
	s := &Solution{
		Title:         e.Title,
		Description:   e.Description,
		Stacks:        slices.Clone(e.Stacks),
		PreviewImage:  e.PreviewImage,
		ChallengeLink: e.ChallengeLink,
		SolutionLink:  e.SolutionLink,
		RepoLink:      e.RepoLink,
		LiveLink:      e.LiveLink,
		HasDir:        hasDir,
	}
	if s.Stacks == nil {
		s.Stacks = []string{}
	}
	if s.PreviewImage != "" && !isAbsoluteRef(s.PreviewImage) {
		s.PreviewImage = path.Join(links.Base, id, s.PreviewImage)
	}
	if s.RepoLink == "" {
		s.RepoLink = joinURL(links.RepoTreeURL, id)
	}
	if s.LiveLink == "" {
		s.LiveLink = joinURL(links.LiveURL, id)
	}
	return s
}

// isAbsoluteRef reports whether ref is rooted or carries a scheme.
func isAbsoluteRef(ref string) bool {
	if strings.HasPrefix(ref, "/") {
		return true
	}
	u, err := url.Parse(ref)
	return err == nil && u.Scheme != ""
}

func joinURL(prefix, id string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + id
}

// LogWarnings writes each warning to logger at warn level.
func LogWarnings(logger *slog.Logger, warnings []Warning) {
	for _, w := range warnings {
		logger.Warn("Solution registry drift", "kind", string(w.Kind), "id", w.ID, "detail", w.Message)
	}
}
