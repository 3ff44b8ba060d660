// Package htmlrewrite patches asset URLs in HTML documents served from the
// multi-app source tree.
//
// Only attribute value bytes are replaced; quoting and everything else in the
// document is kept byte for byte.
package htmlrewrite

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/avisek/frontend-mentor-solutions/internal/router"
)

// assetAttrs lists the URL-bearing attributes per element.
var assetAttrs = map[string][]string{
	"script": {"src"},
	"link":   {"href"},
	"img":    {"src", "srcset"},
	"source": {"src", "srcset"},
	"video":  {"src", "poster"},
	"audio":  {"src"},
	"track":  {"src"},
	"input":  {"src"},
	"image":  {"href", "xlink:href"},
	"use":    {"href", "xlink:href"},
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// headOnly elements belong in <head>; seeing one after </head> but before
// <body> is the abandoned-head-element-child diagnostic.
var headOnly = map[string]bool{
	"base": true, "basefont": true, "bgsound": true, "link": true, "meta": true,
	"noframes": true, "script": true, "style": true, "template": true, "title": true,
}

var (
	schemeRE   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
	prefetchRE = regexp.MustCompile(`\.(?:[cm]?js|jsx|[cm]?ts|tsx|css|less|sass|scss|styl|stylus|pcss|postcss)$`)
)

// Rewriter rewrites the asset URLs of one HTML document at a time. It is
// safe for concurrent use once configured.
type Rewriter struct {
	// Base is the public base path, in "/x/" form.
	Base string
	// Router maps request paths to source paths.
	Router *router.Router
	// Production rewrites every local asset URL to its published location
	// instead of applying the dev-server rules.
	Production bool
	// ClientScript, when set in dev mode, is injected as a module script at
	// the top of <head>.
	ClientScript string
}

// Result is a rewritten document.
type Result struct {
	HTML []byte
	// Prefetch lists the routed source paths of the JS and CSS files the
	// document references, in document order. Empty in production mode.
	Prefetch []string
	// Diagnostics lists the suppressed parser diagnostics.
	Diagnostics []Diagnostic
}

// Rewrite patches src, the document found at docPath in the source tree
// (e.g. "/solutions/<id>/index.html"). originalURL is the URL path the
// browser requested, base included; it is ignored in production mode.
func (rw *Rewriter) Rewrite(src []byte, docPath, originalURL string) (*Result, error) {
	p := &pass{
		rw:          rw,
		src:         src,
		docPath:     docPath,
		originalURL: originalURL,
		seen:        map[string]bool{},
	}
	if !rw.Production {
		p.relativeID, p.relative = rw.relativeDoc(docPath, originalURL)
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	return &Result{HTML: p.apply(), Prefetch: p.prefetch, Diagnostics: p.diags}, nil
}

// relativeDoc reports whether relative URLs in docPath get prefixed, and with
// which solution id ("" for the homepage).
func (rw *Rewriter) relativeDoc(docPath, originalURL string) (string, bool) {
	if originalURL == "" || originalURL == "/" {
		return "", false
	}
	if docPath == "/index.html" || docPath == "/"+rw.Router.HomepageDir()+"/index.html" {
		return "", true
	}
	if id := rw.Router.SolutionOf(docPath); id != "" && docPath == "/"+rw.Router.SolutionsDir()+"/"+id+"/index.html" {
		return id, true
	}
	return "", false
}

type edit struct {
	start, end int
	text       string
}

// pass holds the state of one Rewrite call.
type pass struct {
	rw          *Rewriter
	src         []byte
	docPath     string
	originalURL string
	relative    bool
	relativeID  string

	edits    []edit
	prefetch []string
	seen     map[string]bool
	diags    []Diagnostic
}

func (p *pass) run() error {
	z := html.NewTokenizer(bytes.NewReader(p.src))
	offset := 0
	significant := false
	afterHead := false
	foreign := 0
	headEnd, htmlEnd, doctypeEnd := -1, -1, -1
	for {
		tt := z.Next()
		start := offset
		end := offset + len(z.Raw())
		offset = end
		raw := p.src[start:end]
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return fmt.Errorf("failed to tokenize %s: %w", p.docPath, err)
			}
			if len(raw) > 0 {
				return p.fail(CodeEOFInTag, start)
			}
			p.inject(headEnd, htmlEnd, doctypeEnd)
			return nil
		case html.DoctypeToken:
			if !significant {
				doctypeEnd = end
			}
			significant = true
		case html.CommentToken:
			if bytes.HasPrefix(raw, []byte("<!--")) && !bytes.HasSuffix(raw, []byte("-->")) && !bytes.HasSuffix(raw, []byte("--!>")) {
				return p.fail(CodeEOFInComment, start)
			}
		case html.TextToken:
			if !significant && len(bytes.TrimSpace(raw)) > 0 {
				p.note(CodeMissingDoctype, start)
				significant = true
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			if !significant {
				p.note(CodeMissingDoctype, start)
				significant = true
			}
			name, _ := z.TagName()
			tag := string(name)
			attrs := scanAttrs(raw)
			if hasDuplicates(attrs) {
				p.note(CodeDuplicateAttribute, start)
			}
			if tt == html.SelfClosingTagToken && foreign == 0 && !voidElements[tag] && tag != "svg" && tag != "math" {
				p.note(CodeNonVoidSelfClosing, start)
			}
			switch tag {
			case "svg", "math":
				if tt == html.StartTagToken {
					foreign++
				}
			case "html":
				if htmlEnd < 0 {
					htmlEnd = end
				}
			case "head":
				if headEnd < 0 {
					headEnd = end
				}
			case "body":
				afterHead = false
			}
			if afterHead && headOnly[tag] {
				p.note(CodeAbandonedHeadChild, start)
			}
			p.element(start, tag, attrs)
		case html.EndTagToken:
			if len(scanAttrs(raw)) > 0 {
				return p.fail(CodeEndTagWithAttributes, start)
			}
			name, _ := z.TagName()
			switch string(name) {
			case "svg", "math":
				if foreign > 0 {
					foreign--
				}
			case "head":
				afterHead = true
			}
		}
	}
}

func hasDuplicates(attrs []attr) bool {
	for i := range attrs {
		for j := range i {
			if attrs[i].name == attrs[j].name {
				return true
			}
		}
	}
	return false
}

func (p *pass) note(code string, off int) {
	line, col := lineCol(p.src, off)
	p.diags = append(p.diags, Diagnostic{Code: code, Line: line, Col: col})
}

func (p *pass) fail(code string, off int) error {
	line, col := lineCol(p.src, off)
	return &ParseError{Code: code, File: p.docPath, Line: line, Col: col, Frame: codeFrame(p.src, off)}
}

// element rewrites the asset attributes of one start tag. Only the first of
// duplicated attributes is used, like browsers do.
func (p *pass) element(tagStart int, tag string, attrs []attr) {
	names, ok := assetAttrs[tag]
	if !ok {
		return
	}
	done := map[string]bool{}
	for _, a := range attrs {
		if done[a.name] {
			continue
		}
		done[a.name] = true
		if !a.hasValue || !slices.Contains(names, a.name) {
			continue
		}
		start, end := tagStart+a.valStart, tagStart+a.valEnd
		val := html.UnescapeString(string(p.src[start:end]))
		if strings.TrimSpace(val) == "" {
			continue
		}
		var out string
		var changed bool
		if a.name == "srcset" {
			out, changed = p.srcset(val)
		} else {
			out, changed = p.url(val)
		}
		if changed {
			p.edits = append(p.edits, edit{start: start, end: end, text: escapeAttr(out, a.quote)})
		}
	}
}

func (p *pass) srcset(val string) (string, bool) {
	cands := parseSrcset(val)
	changed := false
	for i := range cands {
		if u, ok := p.url(cands[i].url); ok {
			cands[i].url = u
			changed = true
		}
	}
	if !changed {
		return val, false
	}
	return formatSrcset(cands), true
}

func (p *pass) url(u string) (string, bool) {
	if p.rw.Production {
		return p.productionURL(u)
	}
	return p.devURL(u)
}

// devURL prefixes root-relative URLs with the base, and relative URLs in an
// app index with the owning app's public path.
func (p *pass) devURL(u string) (string, bool) {
	base := p.rw.Base
	switch {
	case strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//"):
		pth, suffix := splitURL(u)
		full := joinPath(base, pth)
		p.addPrefetch(pth, full)
		return full + suffix, true
	case strings.HasPrefix(u, ".") && p.relative:
		pth, suffix := splitURL(u)
		p.addPrefetch(pth, joinPath(base, path.Dir(p.docPath), pth))
		return joinPath(base, p.relativeID, pth) + suffix, true
	}
	return u, false
}

// productionURL maps a local URL to where the referenced file is published.
func (p *pass) productionURL(u string) (string, bool) {
	if strings.HasPrefix(u, "#") || strings.HasPrefix(u, "//") || schemeRE.MatchString(u) {
		return u, false
	}
	pth, suffix := splitURL(u)
	if pth == "" {
		return u, false
	}
	var src string
	if strings.HasPrefix(pth, "/") {
		src = p.rw.Router.Rewrite(router.Clean(pth))
	} else {
		src = joinPath(path.Dir(p.docPath), pth)
	}
	out := joinPath(p.rw.Base, p.rw.Router.PublicPath(src)) + suffix
	return out, out != u
}

// addPrefetch records the routed source path behind full when u names a
// script or stylesheet.
func (p *pass) addPrefetch(u, full string) {
	if !prefetchRE.MatchString(u) {
		return
	}
	routed := p.rw.Router.Rewrite(stripBase(full, p.rw.Base))
	if !p.seen[routed] {
		p.seen[routed] = true
		p.prefetch = append(p.prefetch, routed)
	}
}

// inject adds the client script at the top of <head>, falling back to after
// <html>, after the doctype, or the start of the document.
func (p *pass) inject(headEnd, htmlEnd, doctypeEnd int) {
	if p.rw.Production || p.rw.ClientScript == "" {
		return
	}
	at := 0
	switch {
	case headEnd >= 0:
		at = headEnd
	case htmlEnd >= 0:
		at = htmlEnd
	case doctypeEnd >= 0:
		at = doctypeEnd
	}
	tag := `<script type="module" src="` + escapeAttr(p.rw.ClientScript, '"') + `"></script>`
	p.edits = append(p.edits, edit{start: at, end: at, text: tag})
}

func (p *pass) apply() []byte {
	if len(p.edits) == 0 {
		return p.src
	}
	slices.SortStableFunc(p.edits, func(a, b edit) int { return a.start - b.start })
	var out bytes.Buffer
	out.Grow(len(p.src) + 64*len(p.edits))
	last := 0
	for _, e := range p.edits {
		out.Write(p.src[last:e.start])
		out.WriteString(e.text)
		last = e.end
	}
	out.Write(p.src[last:])
	return out.Bytes()
}

// splitURL separates the path of u from its query and fragment.
func splitURL(u string) (string, string) {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i], u[i:]
	}
	return u, ""
}

// joinPath is path.Join keeping the trailing slash of the last element.
func joinPath(elem ...string) string {
	j := path.Join(elem...)
	if last := elem[len(elem)-1]; strings.HasSuffix(last, "/") && !strings.HasSuffix(j, "/") {
		j += "/"
	}
	return j
}

// stripBase turns a public URL path into a request path relative to base.
func stripBase(p, base string) string {
	if p == base || p+"/" == base {
		return "/"
	}
	if rest, ok := strings.CutPrefix(p, base); ok {
		return "/" + rest
	}
	return p
}
