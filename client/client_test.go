package client

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/canvasrelay/protocol"
)

// echoServer upgrades one connection and echoes each client text frame back
// unmasked, the way the relay writes.
func echoServer(t *testing.T) (addr string, done <-chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan struct{})
	go func() {
		defer close(ch)
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		br := bufio.NewReader(nc)
		hs, err := protocol.ReadHandshake(br)
		if err != nil {
			return
		}
		if protocol.WriteHandshakeResponse(nc, hs.Accept) != nil {
			return
		}
		for {
			text, err := protocol.ReadClientText(br)
			if err != nil {
				return
			}
			frame, _ := protocol.EncodeText(text)
			if _, err := nc.Write(frame); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String(), ch
}

func TestSplitAddr(t *testing.T) {
	cases := []struct {
		in, host, path string
		wantErr        bool
	}{
		{"localhost:3001", "localhost:3001", "/", false},
		{"ws://localhost:3001", "localhost:3001", "/", false},
		{"ws://localhost:3001/draw?room=1", "localhost:3001", "/draw?room=1", false},
		{"wss://localhost:3001", "", "", true},
		{"ws://%zz", "", "", true},
	}
	for _, tc := range cases {
		host, path, err := splitAddr(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.host, host)
		assert.Equal(t, tc.path, path)
	}
}

func TestDialSendRead(t *testing.T) {
	addr, done := echoServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, "ws://"+addr+"/")
	require.NoError(t, err)

	require.NoError(t, c.SendText(`{"x":10,"y":20,"type":"start"}`))
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	got, err := c.ReadText()
	require.NoError(t, err)
	assert.Equal(t, `{"x":10,"y":20,"type":"start"}`, got)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "close is idempotent")
	assert.ErrorIs(t, c.SendText("late"), ErrClosed)
	_, err = c.ReadText()
	assert.ErrorIs(t, err, ErrClosed)
	<-done
}

func TestSendTextTooLong(t *testing.T) {
	addr, _ := echoServer(t)
	c, err := Dial(context.Background(), addr)
	require.NoError(t, err)
	defer c.Close()

	err = c.SendText(string(make([]byte, protocol.MaxPayloadLen+1)))
	assert.ErrorIs(t, err, protocol.ErrPayloadTooLarge)
}

func TestDialRetriesExhausted(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = DialConfig(context.Background(), Config{Addr: addr, ReconnectMax: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max reconnect attempts")
}

func TestDialRejectedHandshake(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		_, _ = protocol.ReadHandshake(bufio.NewReader(nc))
		_ = protocol.WriteHandshakeRejection(nc, protocol.ErrMalformedKey)
	}()

	_, err = Dial(context.Background(), ln.Addr().String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake")
}
