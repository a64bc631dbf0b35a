// internal/binding/trigger.go
package binding

import (
	"context"
	"reflect"
	"slices"

	"github.com/vk/jobhost/internal/converter"
	"github.com/vk/jobhost/internal/pathtemplate"
)

// Trigger describes how an extension binds one kind of trigger.
type Trigger[T TriggerTag] struct {
	// Accepts reports whether a parameter of type t can receive the payload.
	// A nil Accepts admits every type.
	Accepts func(t reflect.Type, conv *converter.Registry) bool
	// Contract lists the binding data names the trigger provides in addition
	// to its template's placeholders. t is the trigger parameter's type.
	Contract func(tag T, t reflect.Type) []string
	// Bind converts a payload into binding data and the argument value for a
	// parameter of type t.
	Bind func(ctx context.Context, tag T, tmpl *pathtemplate.Template, payload any, t reflect.Type) (*TriggerData, error)
	// Listen returns the event source for tag. It may be nil.
	Listen func(tag T, tmpl *pathtemplate.Template) ListenFunc
}

// BindToTrigger registers a rule for a trigger tag.
func BindToTrigger[T TriggerTag](b *RuleBuilder[T], name string, trig Trigger[T]) {
	b.register(&funcRule{
		name: name,
		desc: b.describe("trigger"),
		try: func(req *Request) (*ParameterSpec, error) {
			tag, tmpl, ok, err := b.admit(req)
			if err != nil || !ok {
				return nil, err
			}
			if trig.Accepts != nil && !trig.Accepts(req.Type, req.Converters) {
				return nil, nil
			}

			contract := tmpl.ParameterNames()
			if trig.Contract != nil {
				for _, name := range trig.Contract(tag, req.Type) {
					if !slices.Contains(contract, name) {
						contract = append(contract, name)
					}
				}
			}

			paramType := req.Type
			ts := &TriggerSpec{
				Contract: contract,
				Bind: func(ctx context.Context, payload any) (*TriggerData, error) {
					return trig.Bind(ctx, tag, tmpl, payload, paramType)
				},
			}
			if trig.Listen != nil {
				ts.Listen = trig.Listen(tag, tmpl)
			}

			return &ParameterSpec{
				Direction: In,
				Template:  tmpl,
				Trigger:   ts,
			}, nil
		},
	})
}
