// File: protocol/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Typed errors for handshake negotiation and frame decoding.

package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFrame = errors.New("protocol: unsupported frame")
	ErrUnmaskedFrame    = errors.New("protocol: client frame is not masked")
	ErrPayloadTooLarge  = errors.New("protocol: payload exceeds short frame length")

	ErrMissingKey       = errors.New("protocol: missing Sec-WebSocket-Key header")
	ErrMalformedKey     = errors.New("protocol: malformed Sec-WebSocket-Key header")
	ErrMalformedRequest = errors.New("protocol: malformed upgrade request")
	ErrHeadersTooLarge  = errors.New("protocol: handshake headers too large")
)

// HandshakeError reports why an upgrade request was refused.
type HandshakeError struct {
	Err error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake: %v", e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// Reason returns a short label suitable for metrics.
func (e *HandshakeError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrMissingKey):
		return "missing_key"
	case errors.Is(e.Err, ErrMalformedKey):
		return "malformed_key"
	case errors.Is(e.Err, ErrHeadersTooLarge):
		return "headers_too_large"
	default:
		return "malformed_request"
	}
}

// FrameError reports a frame that falls outside the supported subset.
// It is scoped to the connection that sent it.
type FrameError struct {
	Kind   Kind
	Opcode byte
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame (%s, opcode 0x%x): %v", e.Kind, e.Opcode, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

func unsupported(kind Kind, opcode byte) *FrameError {
	return &FrameError{Kind: kind, Opcode: opcode, Err: ErrUnsupportedFrame}
}
