// internal/indexer/errors.go
package indexer

import "fmt"

// IndexingError reports why a declaration could not be indexed. Parameter is
// empty for function-level problems.
type IndexingError struct {
	Function  string
	Parameter string
	Err       error
}

func (e *IndexingError) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("indexing function %q: parameter %q: %v", e.Function, e.Parameter, e.Err)
	}
	return fmt.Sprintf("indexing function %q: %v", e.Function, e.Err)
}

func (e *IndexingError) Unwrap() error {
	return e.Err
}
