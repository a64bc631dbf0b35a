package registry

import (
	"fmt"
	"log/slog"
	"reflect"
)

// RegisterHandler registers a Go function under the name manifests refer to
// it by.
func (r *Registry) RegisterHandler(name string, fn any) {
	if _, exists := r.Handlers[name]; exists {
		panic(fmt.Sprintf("handler with name '%s' already registered", name))
	}
	if reflect.TypeOf(fn) == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
		panic(fmt.Sprintf("handler '%s' must be a func, got %T", name, fn))
	}
	slog.Debug("Registering handler.", "name", name)
	r.Handlers[name] = fn
}

// Handler returns the function registered under name.
func (r *Registry) Handler(name string) (any, bool) {
	fn, ok := r.Handlers[name]
	return fn, ok
}
