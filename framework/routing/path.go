package routing

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// placeholder matches a {name} segment parameter.
var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// NormalizePath collapses duplicate separators, strips a trailing separator
// (except for the root) and guarantees a single leading separator.
//
//	NormalizePath("users//42/")  // "/users/42"
//	NormalizePath("")            // "/"
func NormalizePath(p string) string {
	var b strings.Builder
	b.Grow(len(p) + 1)
	for _, part := range strings.Split(p, "/") {
		if part == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(part)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// hasTrailingSlash reports whether p would lose a trailing separator when
// normalized.
func hasTrailingSlash(p string) bool {
	return len(p) > 1 && strings.HasSuffix(p, "/")
}

// splitSegments splits a normalized path into its segments; the root has none.
func splitSegments(p string) []string {
	if p == "/" {
		return nil
	}
	return strings.Split(p[1:], "/")
}

// decodeSegments percent-decodes every segment of an escaped path. An
// encoded separator stays inside its segment.
func decodeSegments(escaped string) ([]string, error) {
	segs := splitSegments(NormalizePath(escaped))
	for i, s := range segs {
		d, err := url.PathUnescape(s)
		if err != nil {
			return nil, err
		}
		segs[i] = d
	}
	return segs, nil
}

// ── Segment compilation ───────────────────────────────────────────────────────

// segment is one compiled path segment: either a literal or a pattern with
// one named capture per placeholder.
type segment struct {
	raw        string
	literal    bool
	expr       string // unanchored pattern, also used for literals
	re         *regexp.Regexp
	names      []string
	literalLen int // characters outside placeholders
}

func compileSegment(raw string) (*segment, error) {
	if strings.ContainsAny(placeholder.ReplaceAllString(raw, ""), "{}") {
		return nil, fmt.Errorf("routing: malformed placeholder in segment %q", raw)
	}

	locs := placeholder.FindAllStringSubmatchIndex(raw, -1)
	if len(locs) == 0 {
		text := raw
		if d, err := url.PathUnescape(raw); err == nil {
			text = d
		}
		return &segment{raw: text, literal: true, expr: regexp.QuoteMeta(text), literalLen: len(text)}, nil
	}

	// expr is the introspection form, where a capture cannot span a
	// separator. Matching runs on decoded segments, so there a capture may
	// hold a decoded "/".
	seg := &segment{raw: raw}
	var expr, match strings.Builder
	last := 0
	for _, loc := range locs {
		lit := regexp.QuoteMeta(raw[last:loc[0]])
		name := raw[loc[2]:loc[3]]
		expr.WriteString(lit + "(?P<" + name + ">[^/]+?)")
		match.WriteString(lit + "(?P<" + name + ">.+?)")
		seg.literalLen += loc[0] - last
		seg.names = append(seg.names, name)
		last = loc[1]
	}
	tail := regexp.QuoteMeta(raw[last:])
	expr.WriteString(tail)
	match.WriteString(tail)
	seg.literalLen += len(raw) - last

	seg.expr = expr.String()
	re, err := regexp.Compile("(?s)^" + match.String() + "$")
	if err != nil {
		return nil, fmt.Errorf("routing: segment %q: %w", raw, err)
	}
	seg.re = re
	return seg, nil
}

// capture matches text against a parametric segment and appends the
// captured values to params.
func (s *segment) capture(text string, params Params) (Params, bool) {
	m := s.re.FindStringSubmatch(text)
	if m == nil {
		return params, false
	}
	for i, name := range s.names {
		params = append(params, Param{Key: name, Value: m[i+1]})
	}
	return params, true
}

// moreSpecific orders parametric segments: more parameters first, then more
// literal characters.
func moreSpecific(a, b *segment) bool {
	if len(a.names) != len(b.names) {
		return len(a.names) > len(b.names)
	}
	return a.literalLen > b.literalLen
}

// compilePath compiles every segment of a normalized path and the full-path
// pattern exposed for introspection.
func compilePath(p string) ([]*segment, *regexp.Regexp, error) {
	parts := splitSegments(p)
	segs := make([]*segment, 0, len(parts))
	exprs := make([]string, 0, len(parts))
	seen := make(map[string]bool)

	for _, part := range parts {
		seg, err := compileSegment(part)
		if err != nil {
			return nil, nil, err
		}
		for _, name := range seg.names {
			if seen[name] {
				return nil, nil, fmt.Errorf("routing: duplicate parameter {%s} in %q", name, p)
			}
			seen[name] = true
		}
		segs = append(segs, seg)
		exprs = append(exprs, seg.expr)
	}

	full, err := regexp.Compile("^/" + strings.Join(exprs, "/") + "$")
	if err != nil {
		return nil, nil, fmt.Errorf("routing: %q: %w", p, err)
	}
	return segs, full, nil
}

// joinPath concatenates a group prefix and a route path.
func joinPath(prefix, p string) string {
	if prefix == "" {
		return NormalizePath(p)
	}
	return NormalizePath(prefix + "/" + p)
}
