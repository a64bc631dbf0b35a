package host

import (
	"io"

	"github.com/vk/jobhost/internal/indexer"
)

// Describe writes the indexed functions.
func (h *Host) Describe(w io.Writer) error {
	return indexer.Describe(w, h.defs)
}

// DescribeRules writes every registered binding rule.
func (h *Host) DescribeRules(w io.Writer) error {
	return h.registry.Rules.Describe(w)
}
