//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

// File: transport/sockopt_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import "syscall"

const reusePortSupported = false

func reusePortControl(network, address string, c syscall.RawConn) error {
	return nil
}
