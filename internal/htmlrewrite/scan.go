package htmlrewrite

import (
	"bytes"
	"strings"
)

// attr is one attribute found in a raw tag. Offsets are relative to the
// start of the tag.
type attr struct {
	name     string
	hasValue bool
	quote    byte
	valStart int
	valEnd   int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\f' || c == '\r'
}

// scanAttrs walks the attributes of a raw start or end tag following the
// HTML tokenization rules. The tokenizer in x/net/html exposes values but not
// their positions, which are needed to patch a value in place.
func scanAttrs(tag []byte) []attr {
	i := 1
	if i < len(tag) && tag[i] == '/' {
		i++
	}
	for i < len(tag) && !isSpace(tag[i]) && tag[i] != '/' && tag[i] != '>' {
		i++
	}
	var attrs []attr
	for {
		for i < len(tag) && (isSpace(tag[i]) || tag[i] == '/') {
			i++
		}
		if i >= len(tag) || tag[i] == '>' {
			return attrs
		}
		nameStart := i
		// A leading '=' belongs to the name.
		i++
		for i < len(tag) && !isSpace(tag[i]) && tag[i] != '/' && tag[i] != '>' && tag[i] != '=' {
			i++
		}
		a := attr{name: strings.ToLower(string(tag[nameStart:i]))}
		j := i
		for j < len(tag) && isSpace(tag[j]) {
			j++
		}
		if j < len(tag) && tag[j] == '=' {
			j++
			for j < len(tag) && isSpace(tag[j]) {
				j++
			}
			a.hasValue = true
			if j < len(tag) && (tag[j] == '"' || tag[j] == '\'') {
				a.quote = tag[j]
				a.valStart = j + 1
				if k := bytes.IndexByte(tag[a.valStart:], a.quote); k >= 0 {
					a.valEnd = a.valStart + k
					i = a.valEnd + 1
				} else {
					a.valEnd = len(tag)
					i = len(tag)
				}
			} else {
				a.valStart = j
				for j < len(tag) && !isSpace(tag[j]) && tag[j] != '>' {
					j++
				}
				a.valEnd = j
				i = j
			}
		}
		attrs = append(attrs, a)
	}
}

// escapeAttr encodes v for the quoting style the value had in the source.
// An unquoted value that can no longer stand unquoted gets double quotes.
func escapeAttr(v string, quote byte) string {
	v = strings.ReplaceAll(v, "&", "&amp;")
	switch quote {
	case '"':
		return strings.ReplaceAll(v, `"`, "&quot;")
	case '\'':
		return strings.ReplaceAll(v, "'", "&#39;")
	}
	if v == "" || strings.ContainsAny(v, " \t\n\f\r\"'=<>`") {
		return `"` + strings.ReplaceAll(v, `"`, "&quot;") + `"`
	}
	return v
}

type candidate struct {
	url        string
	descriptor string
}

// parseSrcset splits a srcset value into image candidates. URLs may contain
// commas (data: URIs); a candidate ends at a comma that follows the URL or
// its descriptors.
func parseSrcset(s string) []candidate {
	var out []candidate
	i := 0
	for i < len(s) {
		for i < len(s) && (isSpace(s[i]) || s[i] == ',') {
			i++
		}
		if i >= len(s) {
			break
		}
		start := i
		for i < len(s) && !isSpace(s[i]) {
			i++
		}
		u := s[start:i]
		if trimmed := strings.TrimRight(u, ","); trimmed != u {
			out = append(out, candidate{url: trimmed})
			continue
		}
		ds := i
		depth := 0
	descriptor:
		for ; i < len(s); i++ {
			switch s[i] {
			case '(':
				depth++
			case ')':
				if depth > 0 {
					depth--
				}
			case ',':
				if depth == 0 {
					break descriptor
				}
			}
		}
		out = append(out, candidate{url: u, descriptor: strings.TrimSpace(s[ds:i])})
	}
	return out
}

func formatSrcset(cands []candidate) string {
	parts := make([]string, len(cands))
	for i, c := range cands {
		if c.descriptor == "" {
			parts[i] = c.url
		} else {
			parts[i] = c.url + " " + c.descriptor
		}
	}
	return strings.Join(parts, ", ")
}
