// internal/pathtemplate/parser.go
package pathtemplate

import "strings"

// Parse converts a template string into a Template.
//
// A `}` outside a placeholder is literal text. A `{` always opens a
// placeholder, which must be closed within the same segment.
func Parse(raw string) (*Template, error) {
	if raw == "" {
		return nil, &ParseError{Kind: EmptyTemplate, Template: raw}
	}

	t := &Template{}
	seen := make(map[string]struct{})
	offset := 0

	for _, part := range strings.Split(raw, "/") {
		seg, err := parseSegment(raw, part, offset, seen, &t.names)
		if err != nil {
			return nil, err
		}
		t.segments = append(t.segments, seg)
		offset += len(part) + 1
	}
	return t, nil
}

// MustParse is like Parse but panics on error. It is meant for templates
// that are compile-time constants.
func MustParse(raw string) *Template {
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func parseSegment(raw, part string, base int, seen map[string]struct{}, names *[]string) (Segment, error) {
	var seg Segment
	var lit strings.Builder

	for i := 0; i < len(part); {
		if part[i] != '{' {
			lit.WriteByte(part[i])
			i++
			continue
		}

		end := strings.IndexByte(part[i+1:], '}')
		if end < 0 {
			return nil, &ParseError{Kind: UnterminatedPlaceholder, Template: raw, Offset: base + i}
		}
		name := part[i+1 : i+1+end]
		switch {
		case name == "":
			return nil, &ParseError{Kind: EmptyPlaceholder, Template: raw, Offset: base + i}
		case strings.ContainsRune(name, '{'):
			return nil, &ParseError{Kind: InvalidPlaceholderName, Template: raw, Offset: base + i, Name: name}
		}
		if _, dup := seen[name]; dup {
			return nil, &ParseError{Kind: DuplicatePlaceholder, Template: raw, Offset: base + i, Name: name}
		}

		if lit.Len() > 0 {
			seg = append(seg, Token{Literal: lit.String()})
			lit.Reset()
		} else if len(seg) > 0 && seg[len(seg)-1].IsPlaceholder() {
			return nil, &ParseError{Kind: AdjacentPlaceholders, Template: raw, Offset: base + i, Name: name}
		}

		seen[name] = struct{}{}
		*names = append(*names, name)
		seg = append(seg, Token{Name: name})
		i += end + 2
	}

	if lit.Len() > 0 {
		seg = append(seg, Token{Literal: lit.String()})
	}
	return seg, nil
}
