// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Implements the short-frame subset of the WebSocket protocol (RFC 6455) used
// by canvasrelay.
//
// Includes:
//   - HTTP/1.1 upgrade negotiation and Sec-WebSocket-Accept derivation
//   - Final text frames with 7-bit payload lengths (0..125), masked or not
//   - Classification of every other frame shape (extended lengths,
//     fragmentation, control and binary opcodes) into a typed FrameError
//
// Extended payload lengths, fragmentation and control frames are not
// implemented.
package protocol
