package invoker

import (
	"fmt"
	"maps"
	"reflect"

	"github.com/vk/jobhost/internal/binding"
	"github.com/vk/jobhost/internal/indexer"
)

// buildData merges the three sources of binding data. Later sources win:
// path values, then trigger payload fields, then explicit arguments.
func buildData(td *binding.TriggerData, args map[string]any, trigger *indexer.Parameter) binding.Data {
	data := binding.Data{}
	if td != nil {
		maps.Copy(data, td.Path)
		maps.Copy(data, td.Fields)
	}
	for name, v := range args {
		if trigger != nil && name == trigger.Name {
			continue
		}
		if s, ok := scalarString(v); ok {
			data[name] = s
		}
	}
	return data
}

// scalarString formats strings, byte slices, numbers and booleans. Other
// values do not become binding data.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case fmt.Stringer:
		return x.String(), true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return fmt.Sprint(v), true
	}
	return "", false
}
