package topology

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a topology could not be built.
type ErrorKind string

const (
	// KindBadAddress means the bootstrap address is malformed.
	KindBadAddress ErrorKind = "bad_address"
	// KindInitClient means no client could be built for the bootstrap address.
	KindInitClient ErrorKind = "init_client"
	// KindInaccessible means the bootstrap node did not return its node list.
	KindInaccessible ErrorKind = "inaccessible"
	// KindPermissionDenied means the bootstrap node rejected the credentials.
	KindPermissionDenied ErrorKind = "permission_denied"
)

// ErrNotConnected is returned while no topology snapshot has been built yet.
var ErrNotConnected = errors.New("cluster topology is not connected")

// ErrUnknownNode is returned when a node name is not part of the snapshot.
var ErrUnknownNode = errors.New("node is not part of the topology")

// ConnectError is a fatal topology-level failure.
type ConnectError struct {
	Kind    ErrorKind
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %s: %v", e.Address, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a ConnectError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var connErr *ConnectError
	return errors.As(err, &connErr) && connErr.Kind == kind
}
