// internal/binding/registry.go
package binding

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"

	"github.com/vk/jobhost/internal/converter"
)

// Rule turns a binding request into a ParameterSpec, or declines.
type Rule interface {
	Name() string
	TryBind(req *Request) (*ParameterSpec, error)
}

// Describer is implemented by rules that can explain themselves in
// Registry.Describe output.
type Describer interface {
	Description() string
}

// Request is the input to a rule: one tagged parameter of one function.
type Request struct {
	Function   string
	Parameter  string
	Type       reflect.Type
	Tag        Tag
	Converters *converter.Registry
}

// Registry holds binding rules keyed by tag type.
type Registry struct {
	mu       sync.RWMutex
	conv     *converter.Registry
	rules    map[reflect.Type][]Rule
	tagOrder []reflect.Type
	sealed   bool
}

// NewRegistry returns an empty rule registry whose rules convert values
// through conv.
func NewRegistry(conv *converter.Registry) *Registry {
	return &Registry{
		conv:  conv,
		rules: make(map[reflect.Type][]Rule),
	}
}

// Converters returns the converter registry rules use.
func (r *Registry) Converters() *converter.Registry {
	return r.conv
}

// Register appends a rule for tags of tagType. It panics after Seal.
func (r *Registry) Register(tagType reflect.Type, rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		panic(fmt.Sprintf("binding: cannot register rule %q, registry is sealed", rule.Name()))
	}
	if _, seen := r.rules[tagType]; !seen {
		r.tagOrder = append(r.tagOrder, tagType)
	}
	slog.Debug("Registering binding rule.", "tag", tagType.String(), "rule", rule.Name())
	r.rules[tagType] = append(r.rules[tagType], rule)
}

// Seal freezes the registry. The converter registry is sealed with it.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
	if r.conv != nil {
		r.conv.Seal()
	}
}

// HasRules reports whether any rule is registered for tagType.
func (r *Registry) HasRules(tagType reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules[tagType]) > 0
}

// Resolve tries the rules registered for the tag's type in order and returns
// the first spec produced. A rule error other than a decline aborts
// resolution.
func (r *Registry) Resolve(function, param string, typ reflect.Type, tag Tag) (*ParameterSpec, error) {
	tagType := reflect.TypeOf(tag)

	r.mu.RLock()
	rules := r.rules[tagType]
	r.mu.RUnlock()

	req := &Request{
		Function:   function,
		Parameter:  param,
		Type:       typ,
		Tag:        tag,
		Converters: r.conv,
	}

	for _, rule := range rules {
		spec, err := rule.TryBind(req)
		if err != nil {
			if errors.Is(err, ErrDecline) {
				continue
			}
			return nil, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		if spec == nil {
			continue
		}
		if err := complete(spec, req, rule); err != nil {
			return nil, err
		}
		return spec, nil
	}
	return nil, &UnsupportedBindingError{Tag: tag, Type: typ}
}

func complete(spec *ParameterSpec, req *Request, rule Rule) error {
	spec.Name = req.Parameter
	spec.Type = req.Type
	spec.Tag = req.Tag
	if spec.Rule == "" {
		spec.Rule = rule.Name()
	}

	_, isTrigger := req.Tag.(TriggerTag)
	switch {
	case isTrigger && spec.Trigger == nil:
		return fmt.Errorf("rule %s: trigger tag resolved without a trigger spec", rule.Name())
	case !isTrigger && spec.Factory == nil:
		return fmt.Errorf("rule %s: resolved without a factory", rule.Name())
	}
	return nil
}

// Describe writes the registered rules, grouped by tag type in registration
// order.
func (r *Registry) Describe(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tagType := range r.tagOrder {
		if _, err := fmt.Fprintf(w, "%s\n", tagType); err != nil {
			return err
		}
		for _, rule := range r.rules[tagType] {
			line := rule.Name()
			if d, ok := rule.(Describer); ok {
				if desc := d.Description(); desc != "" {
					line += ": " + desc
				}
			}
			if _, err := fmt.Fprintf(w, "  - %s\n", line); err != nil {
				return err
			}
		}
	}
	return nil
}
