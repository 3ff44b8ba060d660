// Package router maps public request paths onto the source tree.
//
// The site is made of independently rooted apps: the homepage under
// homepage/ and one app per solution under solutions/<id>/. In the browser
// every solution lives at /<id>/ and the homepage at /. Rewrite turns the
// former view into the latter before files are resolved.
package router

import (
	"io/fs"
	"path"
	"strings"
)

// Kind is the destination class of a request path.
type Kind int

const (
	// Passthrough paths are served as-is.
	Passthrough Kind = iota
	// Solution paths belong to one solution app.
	Solution
	// Homepage paths belong to the homepage app.
	Homepage
)

func (k Kind) String() string {
	switch k {
	case Passthrough:
		return "passthrough"
	case Solution:
		return "solution"
	case Homepage:
		return "homepage"
	default:
		return "unknown"
	}
}

// Route is the result of classifying a request path.
type Route struct {
	Kind Kind
	// SolutionID is set when Kind is Solution.
	SolutionID string
	// Path is the rewritten, root-relative path. It ends with "/" when the
	// request falls back to the app's index.
	Path string
}

// Router classifies request paths. The zero value is not usable; use New.
type Router struct {
	fsys         fs.FS
	homepageDir  string
	solutionsDir string
	reserved     []string
	// requireDir makes the first segment count as a solution id only when
	// solutions/<id> is a directory.
	requireDir bool
}

// Option configures a Router.
type Option func(*Router)

// WithDirs overrides the homepage and solutions directory names.
func WithDirs(homepage, solutions string) Option {
	return func(r *Router) {
		r.homepageDir = strings.Trim(homepage, "/")
		r.solutionsDir = strings.Trim(solutions, "/")
	}
}

// WithReserved adds path prefixes that are never rewritten.
func WithReserved(prefixes ...string) Option {
	return func(r *Router) {
		r.reserved = append(r.reserved, prefixes...)
	}
}

// PatternOnly treats any first path segment as a solution id, whether or
// not the directory exists.
func PatternOnly() Option {
	return func(r *Router) {
		r.requireDir = false
	}
}

// New returns a Router probing fsys, which is rooted at the site root.
func New(fsys fs.FS, opts ...Option) *Router {
	r := &Router{
		fsys:         fsys,
		homepageDir:  "homepage",
		solutionsDir: "solutions",
		requireDir:   true,
	}
	for _, o := range opts {
		o(r)
	}
	r.reserved = append([]string{"/@", "/node_modules/", "/" + r.homepageDir + "/", "/" + r.solutionsDir + "/"}, r.reserved...)
	return r
}

// HomepageDir returns the homepage directory name.
func (r *Router) HomepageDir() string {
	return r.homepageDir
}

// SolutionsDir returns the solutions directory name.
func (r *Router) SolutionsDir() string {
	return r.solutionsDir
}

// Rewrite returns the root-relative source path for the request path p.
// The query string, if any, must already be stripped.
func (r *Router) Rewrite(p string) string {
	return r.Classify(p).Path
}

// Classify decides which app p belongs to and rewrites it.
//
//  1. Reserved prefixes pass through.
//  2. /<id>/<rest> belongs to solution id; <rest> is kept when it looks like
//     a file or exists on disk, otherwise the solution index serves it.
//  3. Anything else belongs to the homepage with the same rule.
func (r *Router) Classify(p string) Route {
	if p == "" {
		p = "/"
	}
	for _, prefix := range r.reserved {
		if strings.HasPrefix(p, prefix) {
			return Route{Kind: Passthrough, Path: p}
		}
	}
	if id, rest, ok := splitSolution(p); ok && r.isSolution(id) {
		dir := r.solutionsDir + "/" + id + "/"
		return Route{Kind: Solution, SolutionID: id, Path: "/" + dir + r.keep(dir, rest)}
	}
	dir := r.homepageDir + "/"
	return Route{Kind: Homepage, Path: "/" + dir + r.keep(dir, p[1:])}
}

// splitSolution matches ^/([^/]+)/ and returns the segment and remainder.
func splitSolution(p string) (id, rest string, ok bool) {
	if !strings.HasPrefix(p, "/") {
		return "", "", false
	}
	id, rest, ok = strings.Cut(p[1:], "/")
	if !ok || id == "" {
		return "", "", false
	}
	return id, rest, true
}

func (r *Router) isSolution(id string) bool {
	if !r.requireDir {
		return true
	}
	if id == "." || id == ".." {
		return false
	}
	fi, err := fs.Stat(r.fsys, r.solutionsDir+"/"+id)
	return err == nil && fi.IsDir()
}

// keep returns inner when it names a file (by extension or existence) under
// dir, or "" to fall back to dir's index.
func (r *Router) keep(dir, inner string) string {
	if inner == "" || LooksLikeFile(inner) || r.exists(dir, inner) {
		return inner
	}
	return ""
}

func (r *Router) exists(dir, inner string) bool {
	name := dir + inner
	if strings.HasSuffix(inner, "/") {
		name += "index.html"
	}
	if !fs.ValidPath(name) {
		return false
	}
	_, err := fs.Stat(r.fsys, name)
	return err == nil
}

// LooksLikeFile reports whether the last segment of p has an extension.
// A path ending in "/" never does.
func LooksLikeFile(p string) bool {
	last := p[strings.LastIndexByte(p, '/')+1:]
	return strings.Contains(last, ".")
}

// PublicPath maps a root-relative source path to where it is published:
// /homepage/x becomes /x and /solutions/<id>/x becomes /<id>/x. Other paths
// are returned unchanged.
func (r *Router) PublicPath(src string) string {
	if rest, ok := strings.CutPrefix(src, "/"+r.homepageDir+"/"); ok {
		return "/" + rest
	}
	if src == "/"+r.homepageDir {
		return "/"
	}
	if rest, ok := strings.CutPrefix(src, "/"+r.solutionsDir+"/"); ok {
		return "/" + rest
	}
	return src
}

// SolutionOf returns the solution id owning the root-relative source path
// src, or "" when src is not inside a solution.
func (r *Router) SolutionOf(src string) string {
	rest, ok := strings.CutPrefix(src, "/"+r.solutionsDir+"/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}

// Clean normalizes a request path the way the dev server sees it: rooted,
// without dot segments, keeping a trailing slash.
func Clean(p string) string {
	if p == "" {
		return "/"
	}
	trailing := strings.HasSuffix(p, "/")
	c := path.Clean("/" + p)
	if trailing && c != "/" {
		c += "/"
	}
	return c
}
