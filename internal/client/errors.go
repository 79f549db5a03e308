package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRequestFailed wraps every transport-level failure: timeout, connection error, malformed response.
var ErrRequestFailed = errors.New("request failed")

// StatusError is returned when a node answers with a non-2xx status code.
type StatusError struct {
	Operation string
	Code      int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d", e.Operation, e.Code)
}

// IsPermissionDenied reports whether err carries an upstream 403.
func IsPermissionDenied(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsNotFound reports whether err carries an upstream 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func hasStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}
