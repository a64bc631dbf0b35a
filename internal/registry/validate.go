package registry

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/vk/jobhost/internal/binding"
	"github.com/vk/jobhost/internal/ctxlog"
)

var (
	tagType        = reflect.TypeFor[binding.Tag]()
	triggerTagType = reflect.TypeFor[binding.TriggerTag]()
)

// ValidateRegistry checks that every binding kind a manifest can name is
// backed by a tag type with at least one rule.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	kinds := make([]string, 0, len(r.TagDecoders))
	for kind := range r.TagDecoders {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)

	for _, kind := range kinds {
		dec := r.TagDecoders[kind]
		if !dec.Type.Implements(tagType) {
			errs = append(errs, fmt.Sprintf("binding kind '%s': %s does not implement binding.Tag", kind, dec.Type))
			continue
		}
		if !r.Rules.HasRules(dec.Type) {
			errs = append(errs, fmt.Sprintf("binding kind '%s': no rules registered for %s", kind, dec.Type))
			continue
		}
		logger.Debug("Binding kind validated.", "kind", kind, "tag", dec.Type.String(), "trigger", dec.Type.Implements(triggerTagType))
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
