// File: hub/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package hub accepts WebSocket peers, tracks the open ones in a Registry and
// relays every text message a peer sends to all other open peers.
//
// Each connection runs one reader goroutine (handshake, then decode loop) and
// one writer goroutine draining a bounded outbox, so messages from a single
// sender reach every receiver in the order they were sent. There is no
// ordering across senders.
package hub
