package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/jobhost/internal/converter"
)

// encodeJSON builds converters from message values to bodies. Byte slices
// and strings are sent as they are by the default converters; slices are
// left to the *[]T collector shape.
func encodeJSON(src, _ reflect.Type) converter.Func {
	switch src.Kind() {
	case reflect.Slice, reflect.Array, reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.String:
		return nil
	}
	return func(_ context.Context, v any, _ any) (any, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding message: %w", err)
		}
		return b, nil
	}
}

func decodeJSON(body []byte, t reflect.Type) (reflect.Value, error) {
	ptr := reflect.New(t)
	if err := json.Unmarshal(body, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("decoding message into %s: %w", t, err)
	}
	return ptr.Elem(), nil
}

// scalarFields returns the top-level scalar members of a JSON object body.
// Bodies that are not objects yield nil.
func scalarFields(body []byte) map[string]string {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch v := v.(type) {
		case string:
			out[k] = v
		case json.Number:
			out[k] = v.String()
		case bool:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

// jsonFieldNames lists the names the scalar fields of struct type t take in
// JSON, which become binding data when a message of that shape arrives.
func jsonFieldNames(t reflect.Type) []string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var names []string
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		switch f.Type.Kind() {
		case reflect.Struct, reflect.Slice, reflect.Map, reflect.Array, reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			jsonName, _, _ := strings.Cut(tag, ",")
			if jsonName == "-" {
				continue
			}
			if jsonName != "" {
				name = jsonName
			}
		}
		names = append(names, name)
	}
	return names
}
