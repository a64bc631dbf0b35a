// internal/indexer/types.go
package indexer

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/vk/jobhost/internal/binding"
)

// Param declares one function parameter. A nil Tag leaves the parameter
// undeclared.
type Param struct {
	Name string
	Tag  binding.Tag
}

// Declaration is the input to Index.
type Declaration struct {
	Name        string
	Description string
	Fn          any
	Params      []Param
	// InvokeOnly functions are never started by their trigger.
	InvokeOnly bool
	Timeout    time.Duration
	// Source locates the declaration, e.g. a manifest file and line.
	Source string
}

// ParamKind classifies how a parameter receives its value.
type ParamKind int

const (
	KindTrigger ParamKind = iota
	KindBound
	KindAmbient
	KindBindingData
	KindInvokeOnly
)

func (k ParamKind) String() string {
	switch k {
	case KindTrigger:
		return "trigger"
	case KindBound:
		return "bound"
	case KindAmbient:
		return "ambient"
	case KindBindingData:
		return "binding-data"
	case KindInvokeOnly:
		return "invoke-only"
	default:
		return "unknown"
	}
}

// Parameter is one indexed parameter.
type Parameter struct {
	Name string
	Type reflect.Type
	Kind ParamKind
	// Spec is set for trigger and bound parameters.
	Spec *binding.ParameterSpec
}

// FunctionDefinition is the indexed form of a Declaration. It is never
// modified after Index returns and is shared by concurrent invocations.
type FunctionDefinition struct {
	Name        string
	Description string
	Source      string
	Fn          reflect.Value
	Params      []Parameter
	// TriggerIndex is the position of the trigger parameter, or -1.
	TriggerIndex int
	AutoTrigger  bool
	InvokeOnly   bool
	Timeout      time.Duration
	ReturnsError bool
}

// Trigger returns the trigger parameter, or nil.
func (d *FunctionDefinition) Trigger() *Parameter {
	if d.TriggerIndex < 0 {
		return nil
	}
	return &d.Params[d.TriggerIndex]
}

// Param returns the parameter with the given name, or nil.
func (d *FunctionDefinition) Param(name string) *Parameter {
	for i := range d.Params {
		if d.Params[i].Name == name {
			return &d.Params[i]
		}
	}
	return nil
}

var (
	contextType        = reflect.TypeFor[context.Context]()
	loggerType         = reflect.TypeFor[*slog.Logger]()
	bindingContextType = reflect.TypeFor[*binding.Context]()
	errorType          = reflect.TypeFor[error]()
	stringType         = reflect.TypeFor[string]()
)

// IsAmbient reports whether the host supplies parameters of type t itself.
func IsAmbient(t reflect.Type) bool {
	return t == contextType || t == loggerType || t == bindingContextType
}
