// internal/binding/types.go
package binding

import (
	"context"
	"log/slog"
	"maps"
	"reflect"
	"slices"

	"github.com/vk/jobhost/internal/pathtemplate"
)

// Tag is a binding declaration attached to a function parameter. Tags are
// plain, immutable struct values.
type Tag interface {
	BindingName() string
}

// TriggerTag is a Tag that starts invocations. A function has at most one.
type TriggerTag interface {
	Tag
	IsTrigger() bool
}

// Direction is the data flow of a bound parameter.
type Direction int

const (
	In Direction = iota
	Out
	InOut
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case InOut:
		return "inout"
	default:
		return "unknown"
	}
}

// Cardinality tells whether an output parameter carries one item or many.
type Cardinality int

const (
	One Cardinality = iota
	Many
)

func (c Cardinality) String() string {
	if c == Many {
		return "many"
	}
	return "one"
}

// Data is the binding data of one invocation: name to value, used to fill
// path templates.
type Data map[string]string

// Clone returns a copy of d that is safe to modify.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	maps.Copy(out, d)
	return out
}

// Context is what a Factory sees when producing one parameter value.
type Context struct {
	FunctionName string
	InvocationID string
	Parameter    string
	Data         Data
	// Path is the parameter's template applied to Data, when the rule
	// declared a template.
	Path   string
	Logger *slog.Logger
}

// Value is a bound argument and the hooks the pipeline runs around it.
type Value struct {
	Arg reflect.Value
	// Flush publishes an output after the function returns.
	Flush func(ctx context.Context) error
	// Cleanup releases resources acquired by the factory.
	Cleanup func() error
	// Status describes what happened to the parameter, for invocation logs.
	Status func() string
}

// Factory produces the value of a parameter for one invocation.
type Factory func(ctx context.Context, bc *Context) (*Value, error)

// ParameterSpec is the resolved binding of one parameter.
type ParameterSpec struct {
	Name        string
	Type        reflect.Type
	Direction   Direction
	Cardinality Cardinality
	Rule        string
	Tag         Tag
	Template    *pathtemplate.Template
	// DataNames lists binding data names the factory reads besides the
	// Template's placeholders.
	DataNames []string
	Factory   Factory
	Trigger   *TriggerSpec
}

// TemplateNames returns the binding data names the parameter needs to be
// bound.
func (s *ParameterSpec) TemplateNames() []string {
	names := s.Template.ParameterNames()
	for _, n := range s.DataNames {
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	return names
}

// TriggerData is the result of binding a trigger payload.
type TriggerData struct {
	// Path holds values extracted from the payload's identifying path.
	Path map[string]string
	// Fields holds values taken from a structured payload. They override Path.
	Fields map[string]string
	// Value is the argument for the trigger parameter.
	Value *Value
}

// Dispatch hands a payload to the invocation pipeline. A non-nil error means
// the invocation faulted.
type Dispatch func(ctx context.Context, payload any) error

// ListenFunc runs a listener until ctx is done, dispatching one payload per
// event.
type ListenFunc func(ctx context.Context, dispatch Dispatch) error

// TriggerSpec is the trigger half of a ParameterSpec.
type TriggerSpec struct {
	// Contract is the list of binding data names the trigger provides.
	Contract []string
	// Bind converts a payload into binding data and the parameter value.
	Bind func(ctx context.Context, payload any) (*TriggerData, error)
	// Listen starts the event source. It is nil for triggers that only fire
	// on explicit calls.
	Listen ListenFunc
}

// ValueOf wraps v as an argument of type t. A nil v yields the zero value.
func ValueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type() != t && rv.Type().ConvertibleTo(t) && !rv.Type().AssignableTo(t) {
		return rv.Convert(t)
	}
	return rv
}
