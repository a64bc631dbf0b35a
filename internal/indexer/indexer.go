// internal/indexer/indexer.go
package indexer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/vk/jobhost/internal/binding"
	"github.com/vk/jobhost/internal/ctxlog"
	"github.com/vk/jobhost/internal/nameresolver"
	"golang.org/x/sync/errgroup"
)

// Indexer resolves declarations against a binding rule registry.
type Indexer struct {
	rules       *binding.Registry
	names       nameresolver.Resolver
	parallelism int
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithNameResolver expands %setting% tokens in tag string fields before
// resolution.
func WithNameResolver(r nameresolver.Resolver) Option {
	return func(ix *Indexer) { ix.names = r }
}

// WithParallelism bounds the number of declarations IndexAll works on at
// once.
func WithParallelism(n int) Option {
	return func(ix *Indexer) { ix.parallelism = n }
}

// New creates an Indexer.
func New(rules *binding.Registry, opts ...Option) *Indexer {
	ix := &Indexer{rules: rules, parallelism: 4}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Index builds the definition of one declaration. It returns (nil, nil) for
// declarations that carry no bindings and are not invoke-only.
func (ix *Indexer) Index(ctx context.Context, decl Declaration) (*FunctionDefinition, error) {
	logger := ctxlog.FromContext(ctx).With("function", decl.Name)
	fail := func(param string, err error) (*FunctionDefinition, error) {
		return nil, &IndexingError{Function: decl.Name, Parameter: param, Err: err}
	}

	triggers := 0
	tagged := 0
	for _, p := range decl.Params {
		if p.Tag == nil {
			continue
		}
		tagged++
		if _, ok := p.Tag.(binding.TriggerTag); ok {
			triggers++
		}
	}
	if tagged == 0 && !decl.InvokeOnly {
		logger.Debug("Skipping function without bindings.")
		return nil, nil
	}
	if triggers > 1 {
		return fail("", errors.New("more than one trigger per function is not allowed"))
	}

	fn := reflect.ValueOf(decl.Fn)
	if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
		return fail("", fmt.Errorf("handler must be a func, got %T", decl.Fn))
	}
	fnType := fn.Type()
	if fnType.IsVariadic() {
		return fail("", errors.New("variadic handlers are not supported"))
	}
	if fnType.NumIn() != len(decl.Params) {
		return fail("", fmt.Errorf("declares %d parameters but the handler takes %d", len(decl.Params), fnType.NumIn()))
	}
	returnsError := false
	switch {
	case fnType.NumOut() == 0:
	case fnType.NumOut() == 1 && fnType.Out(0) == errorType:
		returnsError = true
	default:
		return fail("", fmt.Errorf("handler must return nothing or error, got %s", fnType))
	}

	seen := make(map[string]struct{}, len(decl.Params))
	for _, p := range decl.Params {
		if p.Name == "" {
			return fail("", errors.New("parameter without a name"))
		}
		if _, dup := seen[p.Name]; dup {
			return fail(p.Name, errors.New("duplicate parameter name"))
		}
		seen[p.Name] = struct{}{}
	}

	def := &FunctionDefinition{
		Name:         decl.Name,
		Description:  decl.Description,
		Source:       decl.Source,
		Fn:           fn,
		Params:       make([]Parameter, len(decl.Params)),
		TriggerIndex: -1,
		InvokeOnly:   decl.InvokeOnly,
		Timeout:      decl.Timeout,
		ReturnsError: returnsError,
	}

	// The trigger is resolved first; its contract decides how untagged
	// parameters are classified.
	var contract []string
	for i, p := range decl.Params {
		if _, ok := p.Tag.(binding.TriggerTag); !ok {
			continue
		}
		spec, err := ix.resolve(decl.Name, p, fnType.In(i))
		if err != nil {
			return fail(p.Name, err)
		}
		def.Params[i] = Parameter{Name: p.Name, Type: fnType.In(i), Kind: KindTrigger, Spec: spec}
		def.TriggerIndex = i
		contract = spec.Trigger.Contract
	}

	invokeOnlyParams := 0
	for i, p := range decl.Params {
		if i == def.TriggerIndex {
			continue
		}
		typ := fnType.In(i)
		param := Parameter{Name: p.Name, Type: typ}

		switch {
		case p.Tag != nil:
			spec, err := ix.resolve(decl.Name, p, typ)
			if err != nil {
				return fail(p.Name, err)
			}
			param.Kind = KindBound
			param.Spec = spec
		case IsAmbient(typ):
			param.Kind = KindAmbient
		case slices.Contains(contract, p.Name):
			if _, ok := ix.rules.Converters().Resolve(stringType, typ, nil); !ok {
				return fail(p.Name, fmt.Errorf("binding data %q cannot be converted to %s", p.Name, typ))
			}
			param.Kind = KindBindingData
		default:
			param.Kind = KindInvokeOnly
			invokeOnlyParams++
		}
		def.Params[i] = param
	}

	def.AutoTrigger = def.TriggerIndex >= 0 && !decl.InvokeOnly && invokeOnlyParams == 0

	// Triggered invocations get binding data from the trigger alone.
	if def.AutoTrigger {
		for _, param := range def.Params {
			if param.Kind != KindBound {
				continue
			}
			for _, name := range param.Spec.TemplateNames() {
				if !slices.Contains(contract, name) {
					return fail(param.Name, fmt.Errorf("template name %q is not provided by trigger %q (available: %s)",
						name, def.Params[def.TriggerIndex].Name, strings.Join(contract, ", ")))
				}
			}
		}
	}
	logger.Debug("Indexed function.",
		"params", len(def.Params),
		"auto_trigger", def.AutoTrigger,
		"invoke_only_params", invokeOnlyParams,
	)
	return def, nil
}

func (ix *Indexer) resolve(function string, p Param, typ reflect.Type) (*binding.ParameterSpec, error) {
	tag := p.Tag
	if ix.names != nil {
		expanded, err := nameresolver.ExpandFields(tag, ix.names)
		if err != nil {
			return nil, err
		}
		tag = expanded
	}
	return ix.rules.Resolve(function, p.Name, typ, tag)
}

// IndexAll indexes declarations concurrently. Definitions are returned in
// declaration order with unindexed declarations left out. A failing
// declaration never prevents the others from being indexed; all failures
// are joined into the returned error.
func (ix *Indexer) IndexAll(ctx context.Context, decls []Declaration) ([]*FunctionDefinition, error) {
	defs := make([]*FunctionDefinition, len(decls))
	errs := make([]error, len(decls))

	var g errgroup.Group
	if ix.parallelism > 0 {
		g.SetLimit(ix.parallelism)
	}
	for i, decl := range decls {
		g.Go(func() error {
			defs[i], errs[i] = ix.Index(ctx, decl)
			return nil
		})
	}
	_ = g.Wait()

	indexed := make([]*FunctionDefinition, 0, len(decls))
	for i, def := range defs {
		if errs[i] != nil {
			ctxlog.FromContext(ctx).Error("Function indexing failed.", "function", decls[i].Name, "error", errs[i])
			continue
		}
		if def != nil {
			indexed = append(indexed, def)
		}
	}
	return indexed, errors.Join(errs...)
}
