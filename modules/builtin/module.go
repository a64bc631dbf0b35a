// Package builtin registers general purpose handlers that manifests can
// refer to without any Go code of their own.
package builtin

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/vk/jobhost/internal/binding"
	"github.com/vk/jobhost/internal/ctxlog"
	"github.com/vk/jobhost/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives the output of Print. It defaults to stdout.
	Out io.Writer
}

// Register registers the handlers with the host.
func (m *Module) Register(r *registry.Registry) {
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	r.RegisterHandler("Print", func(ctx context.Context, bc *binding.Context, value string) {
		Print(ctx, out, bc, value)
	})
	r.RegisterHandler("Copy", Copy)
	r.RegisterHandler("Upper", Upper)
}

// Print writes value followed by the invocation's binding data, sorted by
// name.
func Print(ctx context.Context, w io.Writer, bc *binding.Context, value string) {
	ctxlog.FromContext(ctx).Info("Printing input")

	fmt.Fprintf(w, "%s: %s\n", bc.FunctionName, value)
	keys := make([]string, 0, len(bc.Data))
	for k := range bc.Data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "      %s = %q\n", k, bc.Data[k])
	}
}

// Copy passes its input through unchanged.
func Copy(in []byte, out *[]byte) {
	*out = in
}

// Upper upper-cases its input.
func Upper(in string, out *string) {
	*out = strings.ToUpper(in)
}
