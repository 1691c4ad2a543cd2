//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// File: transport/sockopt_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

const reusePortSupported = true

// reusePortControl sets SO_REUSEPORT on the socket before bind so that
// several relay processes can share one port.
func reusePortControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
