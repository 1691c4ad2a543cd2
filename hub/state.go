// File: hub/state.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hub

// State is the lifecycle stage of a connection.
// Transitions only move forward: Connecting -> Open -> Closed, or
// Connecting -> Closed when the handshake fails.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
