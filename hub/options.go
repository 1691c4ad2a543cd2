// File: hub/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options for the Hub.

package hub

import (
	"github.com/rs/zerolog"

	"github.com/momentics/canvasrelay/control"
)

// Option customizes hub initialization.
type Option func(*Hub)

// MessageFilter inspects a decoded message before it is broadcast.
// A non-nil error drops the message; the sender stays connected.
type MessageFilter func(text string) error

// WithLogger sets the base logger. Connections derive children tagged with
// conn_id and remote.
func WithLogger(log zerolog.Logger) Option {
	return func(h *Hub) {
		h.log = log.With().Str("component", "hub").Logger()
	}
}

// WithMetrics records relay activity on m.
func WithMetrics(m *control.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithMessageFilter installs f in front of Broadcast.
func WithMessageFilter(f MessageFilter) Option {
	return func(h *Hub) {
		h.filter = f
	}
}
