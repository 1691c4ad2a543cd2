// File: hub/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A single peer connection: lifecycle state, outbox and writer goroutine.

package hub

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Conn is one peer of the hub. It is created by the hub and owned by the
// registry while open.
type Conn struct {
	id           uint64
	nc           net.Conn
	remote       string
	state        atomic.Int32
	out          *outbox
	writeTimeout time.Duration
	log          zerolog.Logger

	done      chan struct{}
	closeOnce sync.Once
	cause     atomic.Pointer[error]
}

func newConn(id uint64, nc net.Conn, cfg Config, log zerolog.Logger) *Conn {
	c := &Conn{
		id:           id,
		nc:           nc,
		remote:       nc.RemoteAddr().String(),
		out:          newOutbox(cfg.QueueSize, cfg.OverflowPolicy),
		writeTimeout: cfg.WriteTimeout,
		done:         make(chan struct{}),
	}
	c.log = log.With().Uint64("conn_id", id).Str("remote", c.remote).Logger()
	return c
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() uint64 { return c.id }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string { return c.remote }

// State returns the current lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

// Done is closed once the connection starts shutting down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the reason the connection was shut down, or nil while open.
func (c *Conn) Err() error {
	if p := c.cause.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *Conn) open() bool {
	return c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen))
}

// shutdown marks the connection closed and interrupts its reader. It takes
// no hub locks, so it is safe to call while iterating the registry; the
// reader goroutine does the removal and closes the socket. Returns the
// number of queued frames discarded, or -1 if already shut down.
func (c *Conn) shutdown(cause error) int {
	discarded := -1
	c.closeOnce.Do(func() {
		c.cause.Store(&cause)
		c.state.Store(int32(StateClosed))
		close(c.done)
		discarded = c.out.close()
		_ = c.nc.SetReadDeadline(time.Now())
	})
	return discarded
}

func (c *Conn) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writeLoop drains the outbox until the connection shuts down. A write
// failure shuts the connection down with a TransportError.
func (c *Conn) writeLoop(onDrop func(n int)) {
	for {
		frame, ok := c.out.pop()
		if !ok {
			select {
			case <-c.out.wake:
				continue
			case <-c.done:
				return
			}
		}
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		if _, err := c.nc.Write(frame); err != nil {
			if n := c.shutdown(&TransportError{Op: "write", ConnID: c.id, Err: err}); n > 0 {
				onDrop(n)
			}
			return
		}
	}
}
