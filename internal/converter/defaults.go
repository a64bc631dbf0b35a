// internal/converter/defaults.go
package converter

import (
	"context"
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var (
	bytesType  = reflect.TypeFor[[]byte]()
	stringType = reflect.TypeFor[string]()
)

// RegisterDefaults installs the built-in conversions every host has: bytes
// to and from strings, and strings to numbers and booleans.
func RegisterDefaults(r *Registry) {
	r.Register(bytesType, stringType, nil, func(_ context.Context, src any, _ any) (any, error) {
		return string(src.([]byte)), nil
	})
	r.Register(stringType, bytesType, nil, func(_ context.Context, src any, _ any) (any, error) {
		return []byte(src.(string)), nil
	})

	scalar := Kinds(
		reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
	)
	r.RegisterOpen(Exact(stringType), scalar, nil, stringToScalar)
}

// stringToScalar parses strings with cty's conversion rules, the same rules
// that apply to configuration attributes.
func stringToScalar(_, dst reflect.Type) Func {
	target := cty.Number
	if dst.Kind() == reflect.Bool {
		target = cty.Bool
	}
	return func(_ context.Context, src any, _ any) (any, error) {
		s := reflect.ValueOf(src).String()
		val, err := convert.Convert(cty.StringVal(s), target)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to %s: %w", s, dst, err)
		}
		out := reflect.New(dst)
		if err := gocty.FromCtyValue(val, out.Interface()); err != nil {
			return nil, fmt.Errorf("cannot convert %q to %s: %w", s, dst, err)
		}
		return out.Elem().Interface(), nil
	}
}
