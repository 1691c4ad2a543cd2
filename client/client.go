// File: client/client.go
// Package client provides a small WebSocket client for the relay.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The client performs the RFC 6455 upgrade over bare TCP (with or without
// the ws:// scheme), sends masked short text frames and reads the relay's
// unmasked text frames. Dialing retries with linear backoff when
// ReconnectMax is set.

package client

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/canvasrelay/protocol"
)

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("client: closed")

// Config holds the client parameters.
type Config struct {
	Addr         string        // ws://host:port/path or bare host:port
	WriteTimeout time.Duration // per-frame write deadline (0 = none)
	ReconnectMax int           // dial attempts after the first failure (0 = no retries)
}

// Conn is an established client connection.
type Conn struct {
	cfg Config
	nc  net.Conn
	br  *bufio.Reader

	wmu    sync.Mutex
	closed atomic.Bool
}

// Dial connects to addr with default settings.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	return DialConfig(ctx, Config{Addr: addr})
}

// DialConfig connects and completes the handshake, retrying per
// cfg.ReconnectMax. It blocks until the handshake completes or fails.
func DialConfig(ctx context.Context, cfg Config) (*Conn, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.ReconnectMax; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			case <-ctx.Done():
				return nil, fmt.Errorf("client: dial %s: %w", cfg.Addr, ctx.Err())
			}
		}
		c, err := dialAndHandshake(ctx, cfg)
		if err == nil {
			return c, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if cfg.ReconnectMax > 0 {
		return nil, fmt.Errorf("client: max reconnect attempts reached: %w", lastErr)
	}
	return nil, lastErr
}

// splitAddr accepts ws:// URLs or bare host:port.
func splitAddr(addr string) (host, path string, err error) {
	if !strings.Contains(addr, "://") {
		return addr, "/", nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", "", fmt.Errorf("client: parse %q: %w", addr, err)
	}
	if u.Scheme != "ws" {
		return "", "", fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	return u.Host, u.RequestURI(), nil
}

func dialAndHandshake(ctx context.Context, cfg Config) (*Conn, error) {
	host, path, err := splitAddr(cfg.Addr)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", host, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = nc.SetDeadline(dl)
	}

	key, err := protocol.NewClientKey()
	if err != nil {
		nc.Close()
		return nil, err
	}
	if err := protocol.WriteHandshakeRequest(nc, host, path, key); err != nil {
		nc.Close()
		return nil, fmt.Errorf("client: handshake: %w", err)
	}
	br := bufio.NewReader(nc)
	if err := protocol.ReadHandshakeResponse(br, key); err != nil {
		nc.Close()
		return nil, fmt.Errorf("client: handshake: %w", err)
	}
	_ = nc.SetDeadline(time.Time{})

	return &Conn{cfg: cfg, nc: nc, br: br}, nil
}

// SendText sends text as one masked frame with a fresh random key.
// Safe for concurrent use.
func (c *Conn) SendText(text string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	var key [protocol.MaskKeyLen]byte
	if _, err := rand.Read(key[:]); err != nil {
		return fmt.Errorf("client: mask key: %w", err)
	}
	frame, err := protocol.EncodeMaskedText(text, key)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	_, err = c.nc.Write(frame)
	return err
}

// ReadText blocks for the next text frame from the relay.
func (c *Conn) ReadText() (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}
	f, err := protocol.ReadFrame(c.br)
	if err != nil {
		return "", err
	}
	return f.Text(), nil
}

// SetReadDeadline bounds the next ReadText calls.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.nc.SetReadDeadline(t)
}

// LocalAddr returns the local socket address.
func (c *Conn) LocalAddr() net.Addr { return c.nc.LocalAddr() }

// Close shuts the connection down; idempotent.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.nc.Close()
}
