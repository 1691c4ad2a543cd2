package transport_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/canvasrelay/transport"
)

func TestListenAccepts(t *testing.T) {
	ln, err := transport.Listen(context.Background(), transport.ListenerConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
		done <- err
	}()

	c, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	c.Close()
	assert.NoError(t, <-done)
}

func TestListenAddressInUse(t *testing.T) {
	ln, err := transport.Listen(context.Background(), transport.ListenerConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer ln.Close()

	_, err = transport.Listen(context.Background(), transport.ListenerConfig{Addr: ln.Addr().String()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport: listen")
}

func TestListenBadAddress(t *testing.T) {
	_, err := transport.Listen(context.Background(), transport.ListenerConfig{Addr: "not-an-address"})
	assert.Error(t, err)
}
