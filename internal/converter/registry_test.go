// internal/converter/registry_test.go
package converter

import (
	"bytes"
	"context"
	"io"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagA struct{}
type tagB struct{}

type stepA struct{ v string }
type stepB struct{ v string }
type stepC struct{ v string }

func constFunc(out any) Func {
	return func(context.Context, any, any) (any, error) { return out, nil }
}

func resolveAndRun(t *testing.T, r *Registry, src, dst reflect.Type, tag any, in any) any {
	t.Helper()
	fn, ok := r.Resolve(src, dst, tag)
	require.True(t, ok, "expected a converter for %s -> %s", src, dst)
	out, err := fn(context.Background(), in, tag)
	require.NoError(t, err)
	return out
}

func TestResolve_ExactTagBeatsWildcard(t *testing.T) {
	r := NewRegistry()
	src, dst := reflect.TypeFor[stepA](), reflect.TypeFor[stepB]()
	r.Register(src, dst, nil, constFunc("wildcard"))
	r.Register(src, dst, reflect.TypeFor[tagA](), constFunc("tagged"))

	assert.Equal(t, "tagged", resolveAndRun(t, r, src, dst, tagA{}, stepA{}))
	assert.Equal(t, "wildcard", resolveAndRun(t, r, src, dst, tagB{}, stepA{}))
	assert.Equal(t, "wildcard", resolveAndRun(t, r, src, dst, nil, stepA{}))
}

func TestResolve_ExactBeatsOpen(t *testing.T) {
	r := NewRegistry()
	src, dst := reflect.TypeFor[stepA](), reflect.TypeFor[stepB]()
	r.RegisterOpen(Any(), Any(), nil, func(_, _ reflect.Type) Func { return constFunc("open") })
	r.Register(src, dst, nil, constFunc("exact"))

	assert.Equal(t, "exact", resolveAndRun(t, r, src, dst, nil, stepA{}))
	assert.Equal(t, "open", resolveAndRun(t, r, src, reflect.TypeFor[stepC](), nil, stepA{}))
}

func TestResolve_OpenOrder(t *testing.T) {
	r := NewRegistry()
	src, dst := reflect.TypeFor[stepA](), reflect.TypeFor[stepB]()
	r.RegisterOpen(Any(), Any(), nil, func(_, _ reflect.Type) Func { return constFunc("first-wildcard") })
	r.RegisterOpen(Any(), Any(), nil, func(_, _ reflect.Type) Func { return constFunc("second-wildcard") })
	r.RegisterOpen(Any(), Any(), reflect.TypeFor[tagA](), func(_, _ reflect.Type) Func { return constFunc("tagged") })

	assert.Equal(t, "tagged", resolveAndRun(t, r, src, dst, tagA{}, stepA{}))
	assert.Equal(t, "first-wildcard", resolveAndRun(t, r, src, dst, tagB{}, stepA{}))
}

func TestResolve_BuilderMayDecline(t *testing.T) {
	r := NewRegistry()
	r.RegisterOpen(Any(), Any(), nil, func(_, _ reflect.Type) Func { return nil })
	r.RegisterOpen(Any(), Any(), nil, func(_, _ reflect.Type) Func { return constFunc("second") })

	assert.Equal(t, "second", resolveAndRun(t, r, reflect.TypeFor[stepA](), reflect.TypeFor[stepB](), nil, stepA{}))
}

func TestResolve_Identity(t *testing.T) {
	r := NewRegistry()
	buf := &bytes.Buffer{}

	out := resolveAndRun(t, r, reflect.TypeFor[*bytes.Buffer](), reflect.TypeFor[io.Reader](), nil, buf)
	assert.Same(t, buf, out)
}

func TestResolve_AssignableTarget(t *testing.T) {
	r := NewRegistry()
	r.Register(reflect.TypeFor[[]byte](), reflect.TypeFor[*bytes.Reader](), nil, func(_ context.Context, src any, _ any) (any, error) {
		return bytes.NewReader(src.([]byte)), nil
	})

	out := resolveAndRun(t, r, reflect.TypeFor[[]byte](), reflect.TypeFor[io.Reader](), nil, []byte("hi"))
	data, err := io.ReadAll(out.(io.Reader))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestResolve_NeverChains(t *testing.T) {
	r := NewRegistry()
	a, b, c := reflect.TypeFor[stepA](), reflect.TypeFor[stepB](), reflect.TypeFor[stepC]()
	r.Register(a, b, nil, func(_ context.Context, src any, _ any) (any, error) { return stepB(src.(stepA)), nil })
	r.Register(b, c, nil, func(_ context.Context, src any, _ any) (any, error) { return stepC(src.(stepB)), nil })

	_, ok := r.Resolve(a, b, nil)
	assert.True(t, ok)
	_, ok = r.Resolve(b, c, nil)
	assert.True(t, ok)
	_, ok = r.Resolve(a, c, nil)
	assert.False(t, ok, "A -> C must not be composed from A -> B and B -> C")
}

func TestRegistry_Panics(t *testing.T) {
	r := NewRegistry()
	a, b := reflect.TypeFor[stepA](), reflect.TypeFor[stepB]()
	r.Register(a, b, nil, constFunc(nil))

	assert.Panics(t, func() { r.Register(a, b, nil, constFunc(nil)) }, "duplicate")
	assert.NotPanics(t, func() { r.Register(a, b, reflect.TypeFor[tagA](), constFunc(nil)) })

	r.Seal()
	assert.True(t, r.Sealed())
	assert.Panics(t, func() { r.Register(b, a, nil, constFunc(nil)) })
	assert.Panics(t, func() { r.RegisterOpen(Any(), Any(), nil, nil) })
}

func TestConvert_Defaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)
	r.Seal()
	ctx := context.Background()

	got, err := r.Convert(ctx, []byte("abc"), reflect.TypeFor[string](), nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	got, err = r.Convert(ctx, "abc", reflect.TypeFor[[]byte](), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got, err = r.Convert(ctx, "42", reflect.TypeFor[int](), nil)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	got, err = r.Convert(ctx, "2.5", reflect.TypeFor[float64](), nil)
	require.NoError(t, err)
	assert.Equal(t, 2.5, got)

	got, err = r.Convert(ctx, "true", reflect.TypeFor[bool](), nil)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	_, err = r.Convert(ctx, "nope", reflect.TypeFor[int](), nil)
	assert.Error(t, err)

	_, err = r.Convert(ctx, 3, reflect.TypeFor[stepA](), nil)
	var nce *NoConverterError
	assert.ErrorAs(t, err, &nce)

	got, err = r.Convert(ctx, nil, reflect.TypeFor[int](), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}
