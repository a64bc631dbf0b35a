// internal/binding/input.go
package binding

import (
	"context"
	"io"
	"reflect"
)

// InputFunc opens the value of an input binding. A value implementing
// io.Closer is closed after the invocation.
type InputFunc[T Tag, V any] func(ctx context.Context, tag T, bc *Context) (V, error)

// BindToInput registers a rule that produces a V and converts it to the
// parameter type. The rule declines parameter types no converter reaches.
func BindToInput[T Tag, V any](b *RuleBuilder[T], name string, open InputFunc[T, V]) {
	src := reflect.TypeFor[V]()

	b.register(&funcRule{
		name: name,
		desc: b.describe("input " + src.String()),
		try: func(req *Request) (*ParameterSpec, error) {
			tag, tmpl, ok, err := b.admit(req)
			if err != nil || !ok {
				return nil, err
			}
			conv, ok := req.Converters.Resolve(src, req.Type, tag)
			if !ok {
				return nil, nil
			}
			paramType := req.Type

			factory := func(ctx context.Context, bc *Context) (*Value, error) {
				bc, err := withPath(bc, tmpl)
				if err != nil {
					return nil, err
				}
				v, err := open(ctx, tag, bc)
				if err != nil {
					return nil, err
				}
				val := &Value{}
				if c, ok := any(v).(io.Closer); ok {
					val.Cleanup = c.Close
				}
				if any(v) == nil {
					val.Arg = reflect.Zero(paramType)
					return val, nil
				}
				out, err := conv(ctx, v, tag)
				if err != nil {
					if val.Cleanup != nil {
						_ = val.Cleanup()
					}
					return nil, err
				}
				val.Arg = ValueOf(out, paramType)
				return val, nil
			}

			return &ParameterSpec{
				Direction: In,
				Template:  tmpl,
				Factory:   factory,
			}, nil
		},
	})
}
