// internal/converter/registry.go
package converter

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
)

// Func converts src into a value of the destination type it was resolved
// for. tag is the binding declaration in effect, or nil.
type Func func(ctx context.Context, src any, tag any) (any, error)

// Builder produces a converter for a concrete source and destination pair
// accepted by an open entry. Returning nil declines the pair.
type Builder func(src, dst reflect.Type) Func

type exactKey struct {
	src, dst, tag reflect.Type
}

type openEntry struct {
	src, dst Matcher
	tag      reflect.Type
	build    Builder
}

// Registry maps (source type, destination type, tag type) to converters.
// It is populated during startup and sealed before use; lookups are safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	exact  map[exactKey]Func
	order  []exactKey
	open   []openEntry
	sealed bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{exact: make(map[exactKey]Func)}
}

// Register adds an exact converter. tagType may be nil to register the
// converter for any tag. It panics on duplicates or after Seal.
func (r *Registry) Register(src, dst, tagType reflect.Type, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustBeOpen()

	k := exactKey{src: src, dst: dst, tag: tagType}
	if _, exists := r.exact[k]; exists {
		panic(fmt.Sprintf("converter: duplicate converter registered for %s -> %s (tag %s)", src, dst, typeName(tagType)))
	}
	slog.Debug("Registering converter.", "src", src.String(), "dst", dst.String(), "tag", typeName(tagType))
	r.exact[k] = fn
	r.order = append(r.order, k)
}

// RegisterOpen adds a pattern converter. Open entries are consulted in
// registration order, tag specific entries first.
func (r *Registry) RegisterOpen(src, dst Matcher, tagType reflect.Type, build Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mustBeOpen()

	slog.Debug("Registering open converter.", "src", src.String(), "dst", dst.String(), "tag", typeName(tagType))
	r.open = append(r.open, openEntry{src: src, dst: dst, tag: tagType, build: build})
}

// Seal freezes the registry. Any later registration panics.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

func (r *Registry) mustBeOpen() {
	if r.sealed {
		panic("converter: registry is sealed")
	}
}

// Resolve finds a converter from src to dst for the given tag. The result is
// at most one converter; two converters are never composed.
func (r *Registry) Resolve(src, dst reflect.Type, tag any) (Func, bool) {
	if src == nil || dst == nil {
		return nil, false
	}
	tagType := reflect.TypeOf(tag)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if tagType != nil {
		if fn, ok := r.exact[exactKey{src: src, dst: dst, tag: tagType}]; ok {
			return fn, true
		}
	}
	if fn, ok := r.exact[exactKey{src: src, dst: dst}]; ok {
		return fn, true
	}

	if tagType != nil {
		if fn := r.resolveOpen(src, dst, tagType); fn != nil {
			return fn, true
		}
	}
	if fn := r.resolveOpen(src, dst, nil); fn != nil {
		return fn, true
	}

	if src.AssignableTo(dst) {
		return identity, true
	}

	for _, k := range r.order {
		if k.src != src || !k.dst.AssignableTo(dst) {
			continue
		}
		if k.tag == nil || k.tag == tagType {
			return r.exact[k], true
		}
	}
	return nil, false
}

func (r *Registry) resolveOpen(src, dst, tagType reflect.Type) Func {
	for _, e := range r.open {
		if e.tag != tagType || !e.src.Match(src) || !e.dst.Match(dst) {
			continue
		}
		if fn := e.build(src, dst); fn != nil {
			return fn
		}
	}
	return nil
}

// Convert resolves and applies a converter for the dynamic type of v.
func (r *Registry) Convert(ctx context.Context, v any, dst reflect.Type, tag any) (any, error) {
	if v == nil {
		return reflect.Zero(dst).Interface(), nil
	}
	src := reflect.TypeOf(v)
	fn, ok := r.Resolve(src, dst, tag)
	if !ok {
		return nil, &NoConverterError{Src: src, Dst: dst}
	}
	return fn(ctx, v, tag)
}

// NoConverterError reports that no converter exists for a pair of types.
type NoConverterError struct {
	Src, Dst reflect.Type
}

func (e *NoConverterError) Error() string {
	return fmt.Sprintf("no converter from %s to %s", e.Src, e.Dst)
}

func identity(_ context.Context, src any, _ any) (any, error) {
	return src, nil
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "*"
	}
	return t.String()
}
