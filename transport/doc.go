// File: transport/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package transport opens the TCP listening socket for the relay and applies
// platform socket options before bind.
package transport
