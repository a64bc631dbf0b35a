// internal/converter/matcher.go
package converter

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// Matcher decides whether a type fits an open converter entry.
type Matcher interface {
	Match(t reflect.Type) bool
	String() string
}

type matchFunc struct {
	desc string
	fn   func(reflect.Type) bool
}

func (m matchFunc) Match(t reflect.Type) bool { return t != nil && m.fn(t) }
func (m matchFunc) String() string           { return m.desc }

// Exact matches exactly one type.
func Exact(t reflect.Type) Matcher {
	return matchFunc{desc: t.String(), fn: func(o reflect.Type) bool { return o == t }}
}

// ExactOf is Exact for the type parameter.
func ExactOf[T any]() Matcher {
	return Exact(reflect.TypeFor[T]())
}

// Any matches every type.
func Any() Matcher {
	return matchFunc{desc: "any", fn: func(reflect.Type) bool { return true }}
}

// SliceOf matches slices whose element type matches elem.
func SliceOf(elem Matcher) Matcher {
	return matchFunc{
		desc: "[]" + elem.String(),
		fn: func(t reflect.Type) bool {
			return t.Kind() == reflect.Slice && elem.Match(t.Elem())
		},
	}
}

// PointerTo matches pointers whose element type matches elem.
func PointerTo(elem Matcher) Matcher {
	return matchFunc{
		desc: "*" + elem.String(),
		fn: func(t reflect.Type) bool {
			return t.Kind() == reflect.Pointer && elem.Match(t.Elem())
		},
	}
}

// Kinds matches any type of the listed kinds.
func Kinds(kinds ...reflect.Kind) Matcher {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return matchFunc{
		desc: "kind(" + strings.Join(names, "|") + ")",
		fn:   func(t reflect.Type) bool { return slices.Contains(kinds, t.Kind()) },
	}
}

// Implements matches types implementing the interface I.
func Implements[I any]() Matcher {
	iface := reflect.TypeFor[I]()
	return matchFunc{
		desc: "implements " + iface.String(),
		fn:   func(t reflect.Type) bool { return t.Implements(iface) },
	}
}

// Family matches instantiations of one generic type, such as Collector[T].
// elem reports the single type argument of t when t belongs to the family.
func Family(name string, elem func(t reflect.Type) (reflect.Type, bool), inner Matcher) Matcher {
	return matchFunc{
		desc: fmt.Sprintf("%s[%s]", name, inner),
		fn: func(t reflect.Type) bool {
			arg, ok := elem(t)
			return ok && inner.Match(arg)
		},
	}
}
