// internal/binding/errors.go
package binding

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrDecline is returned (possibly wrapped) by a rule that does not apply to
// a request. Returning (nil, nil) means the same thing.
var ErrDecline = errors.New("binding rule declined")

// UnsupportedBindingError reports that no registered rule accepted a tag for
// a parameter type.
type UnsupportedBindingError struct {
	Tag  Tag
	Type reflect.Type
}

func (e *UnsupportedBindingError) Error() string {
	return fmt.Sprintf("unsupported binding for declared tag %s on parameter of type %s", e.Tag.BindingName(), e.Type)
}
