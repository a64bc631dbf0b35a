// internal/binding/collector.go
package binding

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/vk/jobhost/internal/converter"
)

// Collector is an output parameter that accepts any number of items during
// an invocation. The pipeline flushes the underlying sink afterwards.
type Collector[T any] func(ctx context.Context, item T) error

// Add sends one item.
func (c Collector[T]) Add(ctx context.Context, item T) error {
	return c(ctx, item)
}

// Sink is the extension side of an output binding.
type Sink[M any] interface {
	Add(ctx context.Context, item M) error
	Flush(ctx context.Context) error
}

// SinkFunc opens the sink behind an output binding.
type SinkFunc[T Tag, M any] func(ctx context.Context, tag T, bc *Context) (Sink[M], error)

var (
	collectorPkg = reflect.TypeFor[Collector[struct{}]]().PkgPath()
	errorType    = reflect.TypeFor[error]()
)

// CollectorElem returns the item type of a Collector instantiation.
func CollectorElem(t reflect.Type) (reflect.Type, bool) {
	if t == nil || t.Kind() != reflect.Func || t.PkgPath() != collectorPkg || !strings.HasPrefix(t.Name(), "Collector[") {
		return nil, false
	}
	if t.NumIn() != 2 || t.NumOut() != 1 {
		return nil, false
	}
	return t.In(1), true
}

// CollectorOf matches Collector[T] types whose item type matches inner.
func CollectorOf(inner converter.Matcher) converter.Matcher {
	return converter.Family("Collector", CollectorElem, inner)
}

type collectorShape int

const (
	shapeCollector collectorShape = iota
	shapePointer
	shapePointerSlice
)

// BindToCollector registers an output rule accepting Collector[X], *X and
// *[]X parameters, where X converts to the sink's item type M. A *X output
// is not sent when the function leaves it nil or, for strings, empty;
// other zero values such as 0 or false are sent.
func BindToCollector[T Tag, M any](b *RuleBuilder[T], name string, open SinkFunc[T, M]) {
	dst := reflect.TypeFor[M]()

	b.register(&funcRule{
		name: name,
		desc: b.describe("collector " + dst.String()),
		try: func(req *Request) (*ParameterSpec, error) {
			tag, tmpl, ok, err := b.admit(req)
			if err != nil || !ok {
				return nil, err
			}
			shape, item, conv, ok := collectorPlan(req, dst)
			if !ok {
				return nil, nil
			}

			spec := &ParameterSpec{
				Direction:   Out,
				Cardinality: Many,
				Template:    tmpl,
			}
			if shape == shapePointer {
				spec.Cardinality = One
			}
			spec.Factory = func(ctx context.Context, bc *Context) (*Value, error) {
				bc, err := withPath(bc, tmpl)
				if err != nil {
					return nil, err
				}
				sink, err := open(ctx, tag, bc)
				if err != nil {
					return nil, err
				}
				return collectorValue(shape, req.Type, item, tag, sink, conv), nil
			}
			return spec, nil
		},
	})
}

func collectorPlan(req *Request, dst reflect.Type) (collectorShape, reflect.Type, converter.Func, bool) {
	resolve := func(item reflect.Type) (converter.Func, bool) {
		return req.Converters.Resolve(item, dst, req.Tag)
	}

	if item, ok := CollectorElem(req.Type); ok {
		conv, ok := resolve(item)
		return shapeCollector, item, conv, ok
	}
	if req.Type.Kind() != reflect.Pointer {
		return 0, nil, nil, false
	}
	elem := req.Type.Elem()
	if conv, ok := resolve(elem); ok {
		return shapePointer, elem, conv, true
	}
	if elem.Kind() == reflect.Slice {
		if conv, ok := resolve(elem.Elem()); ok {
			return shapePointerSlice, elem.Elem(), conv, true
		}
	}
	return 0, nil, nil, false
}

func collectorValue[M any](shape collectorShape, paramType, item reflect.Type, tag Tag, sink Sink[M], conv converter.Func) *Value {
	var added atomic.Int64
	add := func(ctx context.Context, v any) error {
		out, err := conv(ctx, v, tag)
		if err != nil {
			return err
		}
		m, ok := out.(M)
		if !ok {
			return fmt.Errorf("converter produced %T, want %T", out, m)
		}
		if err := sink.Add(ctx, m); err != nil {
			return err
		}
		added.Add(1)
		return nil
	}

	val := &Value{
		Status: func() string { return fmt.Sprintf("%d item(s) added", added.Load()) },
	}

	switch shape {
	case shapeCollector:
		val.Arg = reflect.MakeFunc(paramType, func(args []reflect.Value) []reflect.Value {
			err := add(args[0].Interface().(context.Context), args[1].Interface())
			ret := reflect.New(errorType).Elem()
			if err != nil {
				ret.Set(reflect.ValueOf(err))
			}
			return []reflect.Value{ret}
		})
		val.Flush = sink.Flush

	case shapePointer:
		ptr := reflect.New(item)
		val.Arg = ptr
		val.Flush = func(ctx context.Context) error {
			if !unset(ptr.Elem()) {
				if err := add(ctx, ptr.Elem().Interface()); err != nil {
					return err
				}
			}
			return sink.Flush(ctx)
		}

	case shapePointerSlice:
		ptr := reflect.New(reflect.SliceOf(item))
		val.Arg = ptr
		val.Flush = func(ctx context.Context) error {
			var errs []error
			items := ptr.Elem()
			for i := range items.Len() {
				if err := add(ctx, items.Index(i).Interface()); err != nil {
					errs = append(errs, err)
				}
			}
			errs = append(errs, sink.Flush(ctx))
			return errors.Join(errs...)
		}
	}
	return val
}

// unset reports whether a single output was never assigned.
func unset(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	case reflect.String:
		return v.Len() == 0
	default:
		return false
	}
}
