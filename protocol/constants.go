// File: protocol/constants.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket wire protocol constants for the short-frame subset.

package protocol

const (
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2
	OpcodeClose        = 0x8
	OpcodePing         = 0x9
	OpcodePong         = 0xA

	// MaxPayloadLen is the largest payload expressible in the 7-bit length
	// field. 126 and 127 announce extended lengths, which are not supported.
	MaxPayloadLen = 125

	// Length field values that announce a 16-bit or 64-bit extended length.
	extLen16 = 126
	extLen64 = 127

	HeaderLen  = 2
	MaskKeyLen = 4

	FinBit     = 0x80
	RsvBits    = 0x70
	OpcodeBits = 0x0F
	MaskBit    = 0x80
	LengthBits = 0x7F

	// TextFrameHeader is the first header byte of every frame the server
	// emits: FIN set, opcode text.
	TextFrameHeader = FinBit | OpcodeText
)
