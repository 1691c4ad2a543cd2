// File: hub/hub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Accept loop, per-connection state machine and broadcast fan-out.

package hub

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/canvasrelay/config"
	"github.com/momentics/canvasrelay/control"
	"github.com/momentics/canvasrelay/protocol"
)

const (
	// rejectLinger bounds how long a rejected peer's input is drained.
	rejectLinger     = 250 * time.Millisecond
	rejectDrainLimit = 64 << 10
)

// Config holds the per-connection relay settings.
type Config struct {
	QueueSize        int
	OverflowPolicy   config.OverflowPolicy
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// ConfigFromRelay maps the [relay] section of the runtime configuration.
func ConfigFromRelay(r config.Relay) Config {
	return Config{
		QueueSize:        r.QueueSize,
		OverflowPolicy:   r.OverflowPolicy,
		HandshakeTimeout: r.HandshakeTimeout,
		WriteTimeout:     r.WriteTimeout,
	}
}

// withDefaults fills zero fields from config.Default.
func (c Config) withDefaults() Config {
	def := ConfigFromRelay(config.Default().Relay)
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	if c.OverflowPolicy == "" {
		c.OverflowPolicy = def.OverflowPolicy
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	return c
}

// Hub relays text messages between open connections.
type Hub struct {
	cfg     Config
	reg     *Registry
	log     zerolog.Logger
	metrics *control.Metrics
	filter  MessageFilter
	nextID  atomic.Uint64
}

// New builds a Hub. Zero fields of cfg take their defaults.
func New(cfg Config, opts ...Option) *Hub {
	h := &Hub{
		cfg: cfg.withDefaults(),
		reg: NewRegistry(),
		log: zerolog.Nop(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Registry returns the hub's connection registry.
func (h *Hub) Registry() *Registry { return h.reg }

// Len returns the number of open connections.
func (h *Hub) Len() int { return h.reg.Len() }

// RegisterProbes exposes the registry on dp.
func (h *Hub) RegisterProbes(dp *control.DebugProbes) {
	dp.RegisterProbe("hub.connections", func() any { return h.reg.Len() })
	dp.RegisterProbe("hub.registry", func() any { return h.reg.Snapshot() })
}

// Serve accepts connections from ln until ctx is cancelled or ln fails.
// Each connection is handled on its own goroutine. On return ln is closed
// and every connection has been shut down and its goroutines joined.
// Cancellation of ctx yields a nil error.
func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	defer ln.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(connCtx, func() { _ = ln.Close() })
	defer stop()

	h.log.Info().Str("addr", ln.Addr().String()).Msg("accepting connections")
	var tempDelay time.Duration
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				h.log.Info().Msg("accept loop stopped")
				return nil
			}
			if isTemporaryAccept(err) {
				tempDelay = backoff(tempDelay)
				h.log.Warn().Err(err).Dur("retry_in", tempDelay).Msg("accept")
				time.Sleep(tempDelay)
				continue
			}
			return fmt.Errorf("hub: accept: %w", err)
		}
		tempDelay = 0

		wg.Add(1)
		go func() {
			defer wg.Done()
			h.HandleConn(connCtx, nc)
		}()
	}
}

// isTemporaryAccept reports accept errors the loop survives: timeouts and
// descriptor exhaustion.
func isTemporaryAccept(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE)
}

func backoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		return time.Second
	}
	return d
}

// HandleConn runs the full lifecycle of nc: handshake, registration, the
// read loop and cleanup. It returns once nc is closed and its writer has
// exited. Cancelling ctx shuts the connection down.
func (h *Hub) HandleConn(ctx context.Context, nc net.Conn) {
	c := newConn(h.nextID.Add(1), nc, h.cfg, h.log)
	stop := context.AfterFunc(ctx, func() { h.shutdown(c, ErrServerClosed) })
	defer stop()

	br := bufio.NewReader(nc)
	if err := h.handshake(c, br); err != nil {
		h.shutdown(c, err)
		var he *protocol.HandshakeError
		if errors.As(err, &he) {
			lingerClose(nc)
		} else {
			_ = nc.Close()
		}
		return
	}

	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		c.writeLoop(h.dropped)
	}()

	h.metrics.ConnOpened()
	c.log.Info().Int("peers", h.reg.Len()).Msg("connection open")

	err := h.readLoop(c, br)
	h.shutdown(c, err)

	// Registry first, then the socket: later broadcasts skip c.
	h.reg.Remove(c)
	_ = nc.Close()
	writer.Wait()
	h.metrics.ConnClosed()
	h.logClose(c)
}

// handshake performs the upgrade under HandshakeTimeout and registers c.
// A non-nil error is the close cause: a *protocol.HandshakeError after a 400
// was written, a *TransportError, or ErrServerClosed.
func (h *Hub) handshake(c *Conn, br *bufio.Reader) error {
	_ = c.nc.SetDeadline(time.Now().Add(h.cfg.HandshakeTimeout))

	hs, err := protocol.ReadHandshake(br)
	if err != nil {
		var he *protocol.HandshakeError
		if errors.As(err, &he) {
			h.metrics.HandshakeFailed(he.Reason())
			c.log.Warn().Err(err).Msg("handshake rejected")
			_ = protocol.WriteHandshakeRejection(c.nc, he)
			return he
		}
		h.metrics.HandshakeFailed("transport")
		te := &TransportError{Op: "handshake", ConnID: c.id, Err: err}
		c.log.Debug().Err(te).Msg("handshake aborted")
		return te
	}
	if err := protocol.WriteHandshakeResponse(c.nc, hs.Accept); err != nil {
		h.metrics.HandshakeFailed("transport")
		te := &TransportError{Op: "handshake", ConnID: c.id, Err: err}
		c.log.Debug().Err(te).Msg("handshake aborted")
		return te
	}

	_ = c.nc.SetDeadline(time.Time{})
	// A shutdown racing the deadline reset would otherwise be lost.
	if c.closing() || !c.open() {
		if cause := c.Err(); cause != nil {
			return cause
		}
		return ErrServerClosed
	}
	h.reg.Add(c)
	c.log.Debug().Str("path", hs.Path).Msg("handshake complete")
	return nil
}

// lingerClose half-closes nc and discards the peer's pending input for up to
// rejectLinger before closing, so the 400 is not lost to a reset.
func lingerClose(nc net.Conn) {
	if cw, ok := nc.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
		_ = nc.SetReadDeadline(time.Now().Add(rejectLinger))
		_, _ = io.Copy(io.Discard, io.LimitReader(nc, rejectDrainLimit))
	}
	_ = nc.Close()
}

// readLoop decodes client frames and broadcasts them until an error.
func (h *Hub) readLoop(c *Conn, br *bufio.Reader) error {
	for {
		text, err := protocol.ReadClientText(br)
		if err != nil {
			if cause := c.Err(); cause != nil {
				return cause
			}
			return h.readError(c, err)
		}
		h.metrics.FrameReceived()

		if h.filter != nil {
			if ferr := h.filter(text); ferr != nil {
				h.metrics.Dropped(control.DropFiltered)
				c.log.Debug().Err(ferr).Msg("message filtered")
				continue
			}
		}
		h.Broadcast(c, text)
	}
}

func (h *Hub) readError(c *Conn, err error) error {
	var fe *protocol.FrameError
	switch {
	case errors.As(err, &fe):
		h.metrics.FrameRejected(frameErrorLabel(fe))
		return err
	case errors.Is(err, io.EOF):
		return io.EOF
	default:
		return &TransportError{Op: "read", ConnID: c.id, Err: err}
	}
}

func frameErrorLabel(fe *protocol.FrameError) string {
	switch {
	case errors.Is(fe, protocol.ErrUnmaskedFrame):
		return "unmasked"
	case errors.Is(fe, protocol.ErrInvalidUTF8):
		return "invalid_utf8"
	default:
		return fe.Kind.String()
	}
}

func (h *Hub) logClose(c *Conn) {
	err := c.Err()
	var fe *protocol.FrameError
	switch {
	case errors.Is(err, io.EOF):
		c.log.Info().Msg("connection closed by peer")
	case errors.As(err, &fe) && fe.Kind == protocol.KindControl && fe.Opcode == protocol.OpcodeClose:
		c.log.Info().Msg("peer sent close frame")
	case errors.Is(err, ErrServerClosed):
		c.log.Debug().Msg("connection closed on shutdown")
	case fe != nil:
		c.log.Warn().Err(err).Msg("unsupported frame, connection closed")
	default:
		c.log.Warn().Err(err).Msg("connection closed")
	}
}

// shutdown signals c to close and accounts for frames it never delivered.
func (h *Hub) shutdown(c *Conn, cause error) {
	if n := c.shutdown(cause); n > 0 {
		h.dropped(n)
	}
}

func (h *Hub) dropped(n int) {
	h.metrics.DroppedN(control.DropConnClosed, n)
}

// Broadcast sends text to every open connection except sender and returns
// the number of connections that accepted it. A nil sender reaches every
// connection. Delivery is best-effort: a full or closing peer loses the
// message and is never retried.
func (h *Hub) Broadcast(sender *Conn, text string) int {
	frame, err := protocol.EncodeText(text)
	if err != nil {
		h.log.Warn().Err(err).Msg("broadcast: encode")
		return 0
	}

	delivered := 0
	h.reg.ForEachExcept(sender, func(c *Conn) {
		if h.deliver(c, frame) {
			delivered++
		}
	})
	h.metrics.Broadcast(delivered)
	return delivered
}

// deliver enqueues frame on c. Runs under the registry read lock, so an
// overflowing peer is only signalled here; its reader removes it.
func (h *Hub) deliver(c *Conn, frame []byte) bool {
	evicted, err := c.out.push(frame)
	switch {
	case err == nil:
		if evicted {
			h.metrics.Dropped(control.DropQueueFull)
		}
		return true
	case errors.Is(err, ErrQueueFull):
		h.metrics.Dropped(control.DropQueueFull)
		c.log.Warn().Msg("outbound queue full, closing slow peer")
		h.shutdown(c, ErrQueueFull)
	default:
		h.metrics.Dropped(control.DropConnClosed)
	}
	return false
}
