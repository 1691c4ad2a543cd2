// File: hub/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hub

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is reported when a peer's outbox is full under the close
	// overflow policy.
	ErrQueueFull = errors.New("hub: outbound queue full")
	// ErrConnClosed is reported when delivering to a connection that is
	// already shutting down.
	ErrConnClosed = errors.New("hub: connection closed")
	// ErrServerClosed is the close cause of connections dropped at shutdown.
	ErrServerClosed = errors.New("hub: server closed")
)

// TransportError wraps a socket failure on a single connection.
type TransportError struct {
	Op     string // "handshake", "read" or "write"
	ConnID uint64
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("hub: conn %d %s: %v", e.ConnID, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
