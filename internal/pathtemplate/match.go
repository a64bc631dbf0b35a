// internal/pathtemplate/match.go
package pathtemplate

import "strings"

// Match extracts placeholder values from path. The boolean is false when the
// path does not fit the template; a mismatch is never an error.
func (t *Template) Match(path string) (map[string]string, bool) {
	if t == nil || len(t.segments) == 0 {
		return nil, false
	}

	parts := strings.Split(path, "/")
	last := len(t.segments) - 1

	switch {
	case len(parts) < len(t.segments):
		return nil, false
	case len(parts) > len(t.segments):
		if !t.segments[last].endsWithPlaceholder() {
			return nil, false
		}
		tail := strings.Join(parts[last:], "/")
		parts = append(parts[:last:last], tail)
	}

	values := make(map[string]string, len(t.names))
	for i, seg := range t.segments {
		if !matchSegment(seg, parts[i], i == last, values) {
			return nil, false
		}
	}
	return values, true
}

// Match is a convenience wrapper around t.Match.
func Match(t *Template, path string) (map[string]string, bool) {
	return t.Match(path)
}

func matchSegment(seg Segment, text string, final bool, values map[string]string) bool {
	if final && len(seg) > 0 && !seg.endsWithPlaceholder() {
		suffix := seg[len(seg)-1].Literal
		if !strings.HasSuffix(text, suffix) {
			return false
		}
		seg = seg[:len(seg)-1]
		text = text[:len(text)-len(suffix)]
	}

	pos := 0
	for i, tok := range seg {
		if !tok.IsPlaceholder() {
			if !strings.HasPrefix(text[pos:], tok.Literal) {
				return false
			}
			pos += len(tok.Literal)
			continue
		}

		if i == len(seg)-1 {
			values[tok.Name] = text[pos:]
			pos = len(text)
			continue
		}

		// Parse guarantees the next token is a literal.
		idx := strings.Index(text[pos:], seg[i+1].Literal)
		if idx < 0 {
			return false
		}
		values[tok.Name] = text[pos : pos+idx]
		pos += idx
	}
	return pos == len(text)
}
