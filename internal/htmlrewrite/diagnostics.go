package htmlrewrite

import (
	"bytes"
	"fmt"
	"strings"
)

// Parser diagnostic codes.
const (
	CodeMissingDoctype       = "missing-doctype"
	CodeAbandonedHeadChild   = "abandoned-head-element-child"
	CodeDuplicateAttribute   = "duplicate-attribute"
	CodeNonVoidSelfClosing   = "non-void-html-element-start-tag-with-trailing-solidus"
	CodeEOFInTag             = "eof-in-tag"
	CodeEOFInComment         = "eof-in-comment"
	CodeEndTagWithAttributes = "end-tag-with-attributes"
)

// benign diagnostics never abort a rewrite.
var benign = map[string]bool{
	CodeMissingDoctype:     true,
	CodeAbandonedHeadChild: true,
	CodeDuplicateAttribute: true,
	CodeNonVoidSelfClosing: true,
}

// IsBenign reports whether code is suppressed during a rewrite.
func IsBenign(code string) bool {
	return benign[code]
}

// Diagnostic is a suppressed parser diagnostic.
type Diagnostic struct {
	Code string
	Line int
	Col  int
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Col, d.Code)
}

// ParseError aborts the rewrite of one document.
type ParseError struct {
	Code  string
	File  string
	Line  int
	Col   int
	Frame string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse HTML; %s\n at %s:%d:%d\n%s", e.Code, e.File, e.Line, e.Col, e.Frame)
}

// lineCol converts a byte offset to a 1-based line and column.
func lineCol(src []byte, off int) (int, int) {
	off = min(off, len(src))
	line := 1 + bytes.Count(src[:off], []byte{'\n'})
	col := off - bytes.LastIndexByte(src[:off], '\n')
	return line, col
}

// codeFrame renders the lines around off with a caret under the column.
func codeFrame(src []byte, off int) string {
	const context = 2
	line, col := lineCol(src, off)
	lines := strings.Split(string(src), "\n")
	first := max(line-context, 1)
	last := min(line+context, len(lines))
	width := len(fmt.Sprint(last))
	var b strings.Builder
	for n := first; n <= last; n++ {
		fmt.Fprintf(&b, "%*d | %s\n", width, n, strings.TrimRight(lines[n-1], "\r"))
		if n == line {
			fmt.Fprintf(&b, "%s | %s^\n", strings.Repeat(" ", width), strings.Repeat(" ", col-1))
		}
	}
	return b.String()
}
