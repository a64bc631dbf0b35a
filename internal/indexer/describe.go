// internal/indexer/describe.go
package indexer

import (
	"fmt"
	"io"
	"strings"

	"github.com/vk/jobhost/internal/binding"
)

// Describe writes a deterministic, human-readable summary of defs.
func Describe(w io.Writer, defs []*FunctionDefinition) error {
	for _, def := range defs {
		var sb strings.Builder
		fmt.Fprintf(&sb, "function %s\n", def.Name)
		if def.Source != "" {
			fmt.Fprintf(&sb, "  source: %s\n", def.Source)
		}
		if def.Description != "" {
			fmt.Fprintf(&sb, "  description: %s\n", def.Description)
		}
		fmt.Fprintf(&sb, "  auto-trigger: %t\n", def.AutoTrigger)
		if def.Timeout > 0 {
			fmt.Fprintf(&sb, "  timeout: %s\n", def.Timeout)
		}
		sb.WriteString("  params:\n")
		for _, p := range def.Params {
			fmt.Fprintf(&sb, "    - %s %s %s", p.Name, p.Type, p.Kind)
			if s := p.Spec; s != nil {
				fmt.Fprintf(&sb, " rule=%s dir=%s", s.Rule, s.Direction)
				if s.Direction != binding.In {
					fmt.Fprintf(&sb, " card=%s", s.Cardinality)
				}
				if s.Template != nil {
					fmt.Fprintf(&sb, " template=%s", s.Template)
				}
				if len(s.DataNames) > 0 {
					fmt.Fprintf(&sb, " data=[%s]", strings.Join(s.DataNames, ","))
				}
				if s.Trigger != nil {
					fmt.Fprintf(&sb, " contract=[%s]", strings.Join(s.Trigger.Contract, ","))
				}
			}
			sb.WriteByte('\n')
		}
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
