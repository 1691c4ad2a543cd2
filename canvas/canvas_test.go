package canvas

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"x":10,"y":20,"type":"start"}`))
	require.NoError(t, err)
	assert.Equal(t, Event{X: 10, Y: 20, Type: EventStart}, ev)

	ev, err = ParseEvent([]byte(`{"x":0,"y":0.5,"type":"move"}`))
	require.NoError(t, err)
	assert.Equal(t, Event{X: 0, Y: 0.5, Type: EventMove}, ev)

	ev, err = ParseEvent([]byte(`{"type":"clear"}`))
	require.NoError(t, err)
	assert.Equal(t, EventClear, ev.Type)
}

func TestParseEventErrors(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{`not json`, ErrNotJSON},
		{`[1,2]`, ErrNotJSON},
		{`{"x":"1","y":2,"type":"move"}`, ErrNotJSON},
		{`null`, ErrUnknownType},
		{`{"x":1,"y":2}`, ErrUnknownType},
		{`{"x":1,"y":2,"type":"erase"}`, ErrUnknownType},
		{`{"y":2,"type":"start"}`, ErrMissingPosition},
		{`{"x":1,"type":"move"}`, ErrMissingPosition},
		{`{"x":1,"y":2,"type":"clear"}`, ErrUnexpectedCoords},
	}
	for _, tc := range cases {
		_, err := ParseEvent([]byte(tc.in))
		assert.ErrorIs(t, err, tc.want, tc.in)
		assert.ErrorIs(t, Validate(tc.in), tc.want, tc.in)
	}
}

func TestEventEncode(t *testing.T) {
	s, err := Event{X: 10, Y: 20, Type: EventStart}.Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"x":10,"y":20,"type":"start"}`, s)

	s, err = Event{Type: EventClear}.Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"clear"}`, s)

	_, err = Event{Type: "erase"}.Encode()
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestPageEmbedsURL(t *testing.T) {
	page, err := Page("ws://localhost:3001/")
	require.NoError(t, err)
	html := string(page)
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "new WebSocket(")
	assert.Contains(t, html, "localhost:3001")
	assert.NotContains(t, html, "{{")
	assert.Contains(t, html, `id="board"`)
}

func TestPageEscapesURL(t *testing.T) {
	page, err := Page(`ws://x/");alert(1);//`)
	require.NoError(t, err)
	assert.NotContains(t, string(page), `x/");alert(1)`)
}

func TestWebSocketURL(t *testing.T) {
	cases := []struct {
		wsAddr, host, want string
	}{
		{":3001", "example.org:3000", "ws://example.org:3001/"},
		{":3001", "example.org", "ws://example.org:3001/"},
		{":3001", "", "ws://localhost:3001/"},
		{"0.0.0.0:3001", "10.0.0.2:3000", "ws://10.0.0.2:3001/"},
		{"127.0.0.1:4001", "example.org:3000", "ws://127.0.0.1:4001/"},
		{"[::]:3001", "[::1]:3000", "ws://[::1]:3001/"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, WebSocketURL(tc.wsAddr, tc.host), tc.wsAddr)
	}
}
