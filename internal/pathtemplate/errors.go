// internal/pathtemplate/errors.go
package pathtemplate

import "fmt"

// ParseErrorKind classifies template syntax errors.
type ParseErrorKind int

const (
	// UnterminatedPlaceholder is a `{` without a closing `}` in the same segment.
	UnterminatedPlaceholder ParseErrorKind = iota
	// EmptyPlaceholder is `{}`.
	EmptyPlaceholder
	// InvalidPlaceholderName is a name containing `{`.
	InvalidPlaceholderName
	// DuplicatePlaceholder is a name used twice in one template.
	DuplicatePlaceholder
	// AdjacentPlaceholders is two placeholders with no literal between them.
	AdjacentPlaceholders
	// EmptyTemplate is the empty string.
	EmptyTemplate
)

func (k ParseErrorKind) String() string {
	switch k {
	case UnterminatedPlaceholder:
		return "unterminated placeholder"
	case EmptyPlaceholder:
		return "empty placeholder"
	case InvalidPlaceholderName:
		return "invalid placeholder name"
	case DuplicatePlaceholder:
		return "duplicate placeholder"
	case AdjacentPlaceholders:
		return "adjacent placeholders"
	case EmptyTemplate:
		return "empty template"
	default:
		return fmt.Sprintf("ParseErrorKind(%d)", int(k))
	}
}

// ParseError reports malformed template syntax.
type ParseError struct {
	Kind     ParseErrorKind
	Template string
	// Offset is the byte offset in Template where the problem was found.
	Offset int
	Name   string
}

func (e *ParseError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("invalid path template %q: %s %q at offset %d", e.Template, e.Kind, e.Name, e.Offset)
	}
	return fmt.Sprintf("invalid path template %q: %s at offset %d", e.Template, e.Kind, e.Offset)
}

// MissingParameterValue is the error kind reported by MissingValueError.
const MissingParameterValue = "missing-parameter-value"

// MissingValueError is returned by Apply when a placeholder has no value.
type MissingValueError struct {
	Name     string
	Template string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("%s: no value for placeholder %q in template %q", MissingParameterValue, e.Name, e.Template)
}
