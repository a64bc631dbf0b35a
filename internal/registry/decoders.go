package registry

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/vk/jobhost/internal/binding"
)

// TagDecoder turns the body of a manifest `parameter` block into a tag.
type TagDecoder struct {
	Type   reflect.Type
	Decode func(body hcl.Body, evalCtx *hcl.EvalContext) (binding.Tag, hcl.Diagnostics)
}

// DecoderFor returns a TagDecoder that decodes a body into T using its
// `hcl` struct tags.
func DecoderFor[T binding.Tag]() *TagDecoder {
	return &TagDecoder{
		Type: reflect.TypeFor[T](),
		Decode: func(body hcl.Body, evalCtx *hcl.EvalContext) (binding.Tag, hcl.Diagnostics) {
			var tag T
			diags := gohcl.DecodeBody(body, evalCtx, &tag)
			return tag, diags
		},
	}
}

// RegisterTagDecoder registers the decoder for a binding kind, the value of
// a parameter block's `binding` attribute.
func (r *Registry) RegisterTagDecoder(kind string, dec *TagDecoder) {
	if _, exists := r.TagDecoders[kind]; exists {
		panic(fmt.Sprintf("tag decoder for binding kind '%s' already registered", kind))
	}
	slog.Debug("Registering tag decoder.", "kind", kind, "tag", dec.Type.String())
	r.TagDecoders[kind] = dec
}

// TagDecoder returns the decoder for a binding kind.
func (r *Registry) TagDecoder(kind string) (*TagDecoder, bool) {
	dec, ok := r.TagDecoders[kind]
	return dec, ok
}
