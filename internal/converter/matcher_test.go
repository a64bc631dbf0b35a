// internal/converter/matcher_test.go
package converter

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type box[T any] struct{ v T }

func boxElem(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Struct || !strings.HasPrefix(t.Name(), "box[") {
		return nil, false
	}
	return t.Field(0).Type, true
}

func TestMatchers(t *testing.T) {
	testCases := []struct {
		name    string
		matcher Matcher
		typ     reflect.Type
		want    bool
	}{
		{"exact hit", ExactOf[string](), reflect.TypeFor[string](), true},
		{"exact miss", ExactOf[string](), reflect.TypeFor[[]byte](), false},
		{"any", Any(), reflect.TypeFor[struct{}](), true},
		{"slice of any", SliceOf(Any()), reflect.TypeFor[[]int](), true},
		{"slice of string miss", SliceOf(ExactOf[string]()), reflect.TypeFor[[]int](), false},
		{"pointer", PointerTo(ExactOf[int]()), reflect.TypeFor[*int](), true},
		{"pointer miss", PointerTo(ExactOf[int]()), reflect.TypeFor[int](), false},
		{"kinds", Kinds(reflect.Int, reflect.Bool), reflect.TypeFor[bool](), true},
		{"kinds miss", Kinds(reflect.Int), reflect.TypeFor[string](), false},
		{"implements", Implements[io.Writer](), reflect.TypeFor[*strings.Builder](), true},
		{"implements miss", Implements[io.Writer](), reflect.TypeFor[string](), false},
		{"family", Family("box", boxElem, ExactOf[int]()), reflect.TypeFor[box[int]](), true},
		{"family wrong arg", Family("box", boxElem, ExactOf[int]()), reflect.TypeFor[box[string]](), false},
		{"family wrong type", Family("box", boxElem, Any()), reflect.TypeFor[int](), false},
		{"nil type", Any(), nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.matcher.Match(tc.typ))
		})
	}
}

func TestMatcher_String(t *testing.T) {
	m := SliceOf(PointerTo(ExactOf[int]()))
	assert.Equal(t, "[]*int", fmt.Sprint(m))
	assert.Equal(t, "box[any]", Family("box", boxElem, Any()).String())
}
