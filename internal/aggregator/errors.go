package aggregator

import (
	"errors"
	"fmt"
)

// NotFoundError is returned by keyed lookups when the key is unknown.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// UpstreamError is returned when a call that a view cannot do without fails:
// the bootstrap node's listings, or the single node of a targeted request.
type UpstreamError struct {
	Node      string
	Operation string
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Operation, e.Node, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
