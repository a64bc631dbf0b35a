package registry

import (
	"github.com/vk/jobhost/internal/binding"
	"github.com/vk/jobhost/internal/converter"
)

// Module is the interface every extension implements to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds everything extensions contribute to one host instance.
type Registry struct {
	Converters  *converter.Registry
	Rules       *binding.Registry
	Handlers    map[string]any
	TagDecoders map[string]*TagDecoder
}

// New creates a Registry with the built-in converters installed.
func New() *Registry {
	conv := converter.NewRegistry()
	converter.RegisterDefaults(conv)
	return &Registry{
		Converters:  conv,
		Rules:       binding.NewRegistry(conv),
		Handlers:    make(map[string]any),
		TagDecoders: make(map[string]*TagDecoder),
	}
}

// Use registers each module in order.
func (r *Registry) Use(modules ...Module) {
	for _, m := range modules {
		m.Register(r)
	}
}

// Seal freezes rules and converters. Registrations after Seal panic.
func (r *Registry) Seal() {
	r.Rules.Seal()
}
