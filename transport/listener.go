// File: transport/listener.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TCP listener construction.

package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// ListenerConfig holds configuration for the TCP listener.
type ListenerConfig struct {
	Addr      string        // TCP address to bind (e.g., ":3001")
	ReusePort bool          // set SO_REUSEPORT where the platform supports it
	KeepAlive time.Duration // zero uses the net package default
}

// Listen binds a TCP listener according to cfg. ctx only bounds the bind
// itself; closing the returned listener is the caller's job.
func Listen(ctx context.Context, cfg ListenerConfig) (net.Listener, error) {
	lc := net.ListenConfig{KeepAlive: cfg.KeepAlive}
	if cfg.ReusePort {
		if !reusePortSupported {
			return nil, fmt.Errorf("transport: SO_REUSEPORT is not supported on this platform")
		}
		lc.Control = reusePortControl
	}
	ln, err := lc.Listen(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", cfg.Addr, err)
	}
	return ln, nil
}
