// File: protocol/handshake.go
// Package protocol implements the WebSocket handshake for canvasrelay.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server side: parse the HTTP/1.1 upgrade request, validate the client key
// and derive Sec-WebSocket-Accept. Client side: build the request and verify
// the 101 response.

package protocol

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	WebSocketGUID           = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	HeaderSecWebSocketKey   = "Sec-WebSocket-Key"
	HeaderSecWebSocketAcc   = "Sec-WebSocket-Accept"
	MaxHandshakeHeadersSize = 8192

	// maxRequestHeadSize caps the bytes consumed for the request line and
	// header block, framing included.
	maxRequestHeadSize = MaxHandshakeHeadersSize + 1024

	keyNonceLen = 16
)

// ErrAcceptMismatch is returned to a client whose server answered with a
// wrong Sec-WebSocket-Accept token.
var ErrAcceptMismatch = errors.New("protocol: Sec-WebSocket-Accept mismatch")

// Handshake is a validated upgrade request.
type Handshake struct {
	Key    string
	Accept string
	Path   string
}

// ComputeAcceptKey derives the Sec-WebSocket-Accept value for a client key.
func ComputeAcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + WebSocketGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ParseHandshake negotiates from the raw bytes of an upgrade request.
func ParseHandshake(raw []byte) (*Handshake, error) {
	return ReadHandshake(bufio.NewReader(bytes.NewReader(raw)))
}

// ReadHandshake reads one upgrade request from br. Bytes buffered past the
// request stay in br for frame decoding.
//
// A request that cannot be negotiated yields a *HandshakeError. Transport
// failures (EOF, timeouts) are returned as they are.
func ReadHandshake(br *bufio.Reader) (*Handshake, error) {
	head, err := readRequestHead(br)
	if err != nil {
		return nil, err
	}
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(head)))
	if err != nil {
		return nil, &HandshakeError{Err: fmt.Errorf("%w: %v", ErrMalformedRequest, err)}
	}
	if req.Body != nil {
		req.Body.Close()
	}

	total := 0
	for k, vs := range req.Header {
		total += len(k)
		for _, v := range vs {
			total += len(v)
		}
	}
	if total > MaxHandshakeHeadersSize {
		return nil, &HandshakeError{Err: ErrHeadersTooLarge}
	}

	key := strings.TrimSpace(req.Header.Get(HeaderSecWebSocketKey))
	if key == "" {
		return nil, &HandshakeError{Err: ErrMissingKey}
	}
	nonce, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(nonce) != keyNonceLen {
		return nil, &HandshakeError{Err: ErrMalformedKey}
	}

	return &Handshake{
		Key:    key,
		Accept: ComputeAcceptKey(key),
		Path:   req.URL.Path,
	}, nil
}

// readRequestHead consumes lines from br up to and including the blank line
// that ends the header block. Nothing past it is read, and at most
// maxRequestHeadSize bytes are consumed.
func readRequestHead(br *bufio.Reader) ([]byte, error) {
	var head []byte
	lineLen := 0
	for {
		chunk, err := br.ReadSlice('\n')
		head = append(head, chunk...)
		lineLen += len(chunk)
		if len(head) > maxRequestHeadSize {
			return nil, &HandshakeError{Err: ErrHeadersTooLarge}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(head) > 0:
			return nil, io.ErrUnexpectedEOF
		case err != nil:
			return nil, err
		}
		if lineLen <= 2 && len(bytes.TrimRight(chunk, "\r\n")) == 0 {
			return head, nil
		}
		lineLen = 0
	}
}

// WriteHandshakeResponse writes the 101 Switching Protocols response.
func WriteHandshakeResponse(w io.Writer, accept string) error {
	_, err := io.WriteString(w, "HTTP/1.1 101 Switching Protocols\r\n"+
		"Upgrade: websocket\r\n"+
		"Connection: Upgrade\r\n"+
		HeaderSecWebSocketAcc+": "+accept+"\r\n"+
		"\r\n")
	return err
}

// WriteHandshakeRejection answers a refused upgrade with 400 Bad Request.
// The caller closes the connection afterwards.
func WriteHandshakeRejection(w io.Writer, cause error) error {
	body := http.StatusText(http.StatusBadRequest)
	if cause != nil {
		body += ": " + cause.Error()
	}
	body += "\n"
	_, err := io.WriteString(w, "HTTP/1.1 400 Bad Request\r\n"+
		"Content-Type: text/plain; charset=utf-8\r\n"+
		"Content-Length: "+strconv.Itoa(len(body))+"\r\n"+
		"Connection: close\r\n"+
		"\r\n"+body)
	return err
}

// NewClientKey returns a random base64-encoded 16-byte nonce.
func NewClientKey() (string, error) {
	var nonce [keyNonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("protocol: client key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonce[:]), nil
}

// WriteHandshakeRequest writes a client upgrade request for host and path.
func WriteHandshakeRequest(w io.Writer, host, path, key string) error {
	if path == "" {
		path = "/"
	}
	_, err := io.WriteString(w, "GET "+path+" HTTP/1.1\r\n"+
		"Host: "+host+"\r\n"+
		"Upgrade: websocket\r\n"+
		"Connection: Upgrade\r\n"+
		HeaderSecWebSocketKey+": "+key+"\r\n"+
		"Sec-WebSocket-Version: 13\r\n"+
		"\r\n")
	return err
}

// ReadHandshakeResponse reads the server response from br and checks the
// status and the accept token derived from key.
func ReadHandshakeResponse(br *bufio.Reader, key string) error {
	resp, err := http.ReadResponse(br, &http.Request{Method: http.MethodGet})
	if err != nil {
		return fmt.Errorf("protocol: handshake read response: %w", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		resp.Body.Close()
		return fmt.Errorf("protocol: handshake failed: status %d", resp.StatusCode)
	}
	if resp.Header.Get(HeaderSecWebSocketAcc) != ComputeAcceptKey(key) {
		return ErrAcceptMismatch
	}
	return nil
}
