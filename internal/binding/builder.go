// internal/binding/builder.go
package binding

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/jobhost/internal/pathtemplate"
)

type filter[T Tag] struct {
	desc string
	pred func(T) bool
}

// RuleBuilder collects the conditions shared by the rules it produces. Each
// Bind* function registers one rule with the builder's current conditions.
type RuleBuilder[T Tag] struct {
	reg        *Registry
	filters    []filter[T]
	validators []func(tag T, paramType reflect.Type) error
	pathOf     func(T) string
}

// On starts a rule definition for tags of type T.
func On[T Tag](reg *Registry) *RuleBuilder[T] {
	return &RuleBuilder[T]{reg: reg}
}

// When adds a filter; rules decline tags for which pred is false.
func (b *RuleBuilder[T]) When(desc string, pred func(T) bool) *RuleBuilder[T] {
	next := b.clone()
	next.filters = append(next.filters, filter[T]{desc: desc, pred: pred})
	return next
}

// WhenSet declines tags whose named field holds its zero value.
func (b *RuleBuilder[T]) WhenSet(field string) *RuleBuilder[T] {
	return b.When(field+" is set", func(tag T) bool { return !fieldIsZero(tag, field) })
}

// WhenUnset declines tags whose named field is set.
func (b *RuleBuilder[T]) WhenUnset(field string) *RuleBuilder[T] {
	return b.When(field+" is unset", func(tag T) bool { return fieldIsZero(tag, field) })
}

// WithValidator adds a check that runs once the filters pass. A failing
// validator aborts resolution instead of declining.
func (b *RuleBuilder[T]) WithValidator(fn func(tag T, paramType reflect.Type) error) *RuleBuilder[T] {
	next := b.clone()
	next.validators = append(next.validators, fn)
	return next
}

// WithTemplate declares that the tag carries a path template. The template
// is parsed at resolution time and applied to the binding data before the
// rule's value is opened.
func (b *RuleBuilder[T]) WithTemplate(pathOf func(T) string) *RuleBuilder[T] {
	next := b.clone()
	next.pathOf = pathOf
	return next
}

func (b *RuleBuilder[T]) clone() *RuleBuilder[T] {
	return &RuleBuilder[T]{
		reg:        b.reg,
		filters:    append([]filter[T](nil), b.filters...),
		validators: append([]func(T, reflect.Type) error(nil), b.validators...),
		pathOf:     b.pathOf,
	}
}

func (b *RuleBuilder[T]) register(r Rule) {
	b.reg.Register(reflect.TypeFor[T](), r)
}

// admit applies filters and validators. A nil tag with a nil error means the
// rule declines.
func (b *RuleBuilder[T]) admit(req *Request) (T, *pathtemplate.Template, bool, error) {
	var zero T
	tag, ok := req.Tag.(T)
	if !ok {
		return zero, nil, false, nil
	}
	for _, f := range b.filters {
		if !f.pred(tag) {
			return zero, nil, false, nil
		}
	}
	for _, v := range b.validators {
		if err := v(tag, req.Type); err != nil {
			return zero, nil, false, err
		}
	}

	var tmpl *pathtemplate.Template
	if b.pathOf != nil {
		t, err := pathtemplate.Parse(b.pathOf(tag))
		if err != nil {
			return zero, nil, false, err
		}
		tmpl = t
	}
	return tag, tmpl, true, nil
}

func (b *RuleBuilder[T]) describe(kind string) string {
	parts := []string{kind}
	if len(b.filters) > 0 {
		descs := make([]string, len(b.filters))
		for i, f := range b.filters {
			descs[i] = f.desc
		}
		parts = append(parts, "when "+strings.Join(descs, " and "))
	}
	if b.pathOf != nil {
		parts = append(parts, "templated")
	}
	if len(b.validators) > 0 {
		parts = append(parts, "validated")
	}
	return strings.Join(parts, ", ")
}

// withPath returns a copy of bc with Path filled from tmpl.
func withPath(bc *Context, tmpl *pathtemplate.Template) (*Context, error) {
	if tmpl == nil {
		return bc, nil
	}
	path, err := tmpl.Apply(bc.Data)
	if err != nil {
		return nil, err
	}
	next := *bc
	next.Path = path
	return &next, nil
}

type funcRule struct {
	name string
	desc string
	try  func(req *Request) (*ParameterSpec, error)
}

func (r *funcRule) Name() string        { return r.name }
func (r *funcRule) Description() string { return r.desc }

func (r *funcRule) TryBind(req *Request) (*ParameterSpec, error) { return r.try(req) }

// Bind registers a custom rule under the builder's conditions. fn receives a
// tag that passed every filter and validator.
func Bind[T Tag](b *RuleBuilder[T], name string, fn func(tag T, tmpl *pathtemplate.Template, req *Request) (*ParameterSpec, error)) {
	b.register(&funcRule{
		name: name,
		desc: b.describe("custom"),
		try: func(req *Request) (*ParameterSpec, error) {
			tag, tmpl, ok, err := b.admit(req)
			if err != nil || !ok {
				return nil, err
			}
			spec, err := fn(tag, tmpl, req)
			if spec != nil && spec.Template == nil {
				spec.Template = tmpl
			}
			return spec, err
		},
	})
}

// OpenWithPath wraps a factory so that bc.Path is resolved from tmpl before
// it runs. Custom rules use it to get the same template handling as the
// built-in ones.
func OpenWithPath(tmpl *pathtemplate.Template, f Factory) Factory {
	return func(ctx context.Context, bc *Context) (*Value, error) {
		bc, err := withPath(bc, tmpl)
		if err != nil {
			return nil, err
		}
		return f(ctx, bc)
	}
}

func fieldIsZero(tag any, field string) bool {
	v := reflect.Indirect(reflect.ValueOf(tag))
	if v.Kind() != reflect.Struct {
		panic(fmt.Sprintf("binding: tag %T is not a struct", tag))
	}
	f := v.FieldByName(field)
	if !f.IsValid() {
		panic(fmt.Sprintf("binding: tag %T has no field %q", tag, field))
	}
	return f.IsZero()
}
