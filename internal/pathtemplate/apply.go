// internal/pathtemplate/apply.go
package pathtemplate

import "strings"

// Apply substitutes every placeholder with its value. A placeholder with no
// entry in values yields a *MissingValueError. Empty values are allowed.
func (t *Template) Apply(values map[string]string) (string, error) {
	return t.apply(values, false)
}

// ApplyPartial substitutes the placeholders that have values and leaves the
// others in place.
func (t *Template) ApplyPartial(values map[string]string) string {
	s, _ := t.apply(values, true)
	return s
}

// Apply is a convenience wrapper around t.Apply.
func Apply(t *Template, values map[string]string) (string, error) {
	return t.Apply(values)
}

func (t *Template) apply(values map[string]string, partial bool) (string, error) {
	var sb strings.Builder
	for i, seg := range t.segments {
		if i > 0 {
			sb.WriteByte('/')
		}
		for _, tok := range seg {
			if !tok.IsPlaceholder() {
				sb.WriteString(tok.Literal)
				continue
			}
			v, ok := values[tok.Name]
			switch {
			case ok:
				sb.WriteString(v)
			case partial:
				sb.WriteString("{" + tok.Name + "}")
			default:
				return "", &MissingValueError{Name: tok.Name, Template: t.String()}
			}
		}
	}
	return sb.String(), nil
}
