// internal/pathtemplate/types.go
package pathtemplate

import (
	"slices"
	"strings"
)

// Token is a single element of a template segment: either literal text or a
// named placeholder.
type Token struct {
	Literal string
	Name    string
}

// IsPlaceholder reports whether the token is a `{name}` placeholder.
func (t Token) IsPlaceholder() bool {
	return t.Name != ""
}

// Segment is the list of tokens between two `/` separators.
type Segment []Token

func (s Segment) endsWithPlaceholder() bool {
	return len(s) > 0 && s[len(s)-1].IsPlaceholder()
}

// Template is a parsed path template. It is immutable after Parse and safe
// for concurrent use.
type Template struct {
	segments []Segment
	names    []string
}

// Segments returns a copy of the template's segments.
func (t *Template) Segments() []Segment {
	out := make([]Segment, len(t.segments))
	for i, seg := range t.segments {
		out[i] = slices.Clone(seg)
	}
	return out
}

// ParameterNames returns the placeholder names in the order they appear.
func (t *Template) ParameterNames() []string {
	if t == nil {
		return nil
	}
	return slices.Clone(t.names)
}

// HasParameter reports whether the template contains a placeholder with the
// given name.
func (t *Template) HasParameter(name string) bool {
	return t != nil && slices.Contains(t.names, name)
}

// IsLiteral reports whether the template has no placeholders.
func (t *Template) IsLiteral() bool {
	return t == nil || len(t.names) == 0
}

// Prefix returns the literal text before the first placeholder. Listeners
// use it to narrow object listings.
func (t *Template) Prefix() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	for i, seg := range t.segments {
		if i > 0 {
			sb.WriteByte('/')
		}
		for _, tok := range seg {
			if tok.IsPlaceholder() {
				return sb.String()
			}
			sb.WriteString(tok.Literal)
		}
	}
	return sb.String()
}

// String serializes the template into its canonical source form. For any
// template produced by Parse, String returns the original input.
func (t *Template) String() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	for i, seg := range t.segments {
		if i > 0 {
			sb.WriteByte('/')
		}
		for _, tok := range seg {
			if tok.IsPlaceholder() {
				sb.WriteByte('{')
				sb.WriteString(tok.Name)
				sb.WriteByte('}')
				continue
			}
			sb.WriteString(tok.Literal)
		}
	}
	return sb.String()
}

// Equal checks for structural equality between two templates.
func (t *Template) Equal(other *Template) bool {
	if t == nil || other == nil {
		return t == other
	}
	return slices.EqualFunc(t.segments, other.segments, func(a, b Segment) bool {
		return slices.Equal(a, b)
	})
}
