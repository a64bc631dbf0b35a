package hostconfig

import (
	"errors"
	"fmt"

	"github.com/vk/jobhost/internal/indexer"
	"github.com/vk/jobhost/internal/registry"
)

// Declarations turns the function manifests into indexer declarations,
// resolving handlers and decoding each parameter's tag with the decoder
// registered for its binding kind. All failures are reported together.
func (c *Config) Declarations(reg *registry.Registry) ([]indexer.Declaration, error) {
	var decls []indexer.Declaration
	var errs []error
	for _, fn := range c.Functions {
		decl, err := fn.declaration(reg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		decls = append(decls, decl)
	}
	return decls, errors.Join(errs...)
}

func (f *Function) declaration(reg *registry.Registry) (indexer.Declaration, error) {
	fail := func(format string, args ...any) (indexer.Declaration, error) {
		return indexer.Declaration{}, fmt.Errorf("%s: function %q: %s", f.Source, f.Name, fmt.Sprintf(format, args...))
	}

	handler, ok := reg.Handler(f.Handler)
	if !ok {
		return fail("unknown handler %q", f.Handler)
	}

	decl := indexer.Declaration{
		Name:        f.Name,
		Description: f.Description,
		Fn:          handler,
		InvokeOnly:  f.InvokeOnly,
		Timeout:     f.Timeout,
		Source:      f.Source,
		Params:      make([]indexer.Param, 0, len(f.Params)),
	}
	for _, p := range f.Params {
		param := indexer.Param{Name: p.Name}
		if p.Binding == "" {
			attrs, diags := p.Body.JustAttributes()
			if diags.HasErrors() {
				return fail("parameter %q: %s", p.Name, diags.Error())
			}
			if len(attrs) > 0 {
				return fail("parameter %q: attributes given without a binding", p.Name)
			}
			decl.Params = append(decl.Params, param)
			continue
		}

		dec, ok := reg.TagDecoder(p.Binding)
		if !ok {
			return fail("parameter %q: unknown binding %q", p.Name, p.Binding)
		}
		tag, diags := dec.Decode(p.Body, nil)
		if diags.HasErrors() {
			return fail("parameter %q: %s", p.Name, diags.Error())
		}
		param.Tag = tag
		decl.Params = append(decl.Params, param)
	}
	return decl, nil
}
