package host

import (
	"context"
	"fmt"

	"github.com/vk/jobhost/internal/invoker"
)

// UnknownFunctionError is returned by Call for names that were not indexed.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q", e.Name)
}

// Call invokes a function explicitly. args supply binding data and
// invoke-only parameters; for a triggered function, the argument named
// after the trigger parameter is the trigger payload. The returned error
// covers lookup only; the invocation's own outcome is in the Result.
func (h *Host) Call(ctx context.Context, name string, args map[string]any) (*invoker.Result, error) {
	def, ok := h.byName[name]
	if !ok {
		return nil, &UnknownFunctionError{Name: name}
	}
	return h.invoker.Invoke(h.context(ctx), def, args, nil), nil
}
