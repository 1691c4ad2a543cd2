// File: protocol/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Frame model and header classification. Every header is sorted into a Kind
// before any further bytes are read, so an unsupported frame is reported
// instead of having its extended length or payload misread.

package protocol

// Kind tags the variant of a frame header.
type Kind uint8

const (
	// KindText is a final, short text frame: the only supported variant.
	KindText Kind = iota
	KindBinary
	KindFragment
	KindContinuation
	KindControl
	KindExtendedLength
	KindReserved
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	case KindFragment:
		return "fragment"
	case KindContinuation:
		return "continuation"
	case KindControl:
		return "control"
	case KindExtendedLength:
		return "extended_length"
	case KindReserved:
		return "reserved"
	default:
		return "unknown"
	}
}

// Frame is a decoded frame of the short-frame subset.
type Frame struct {
	Fin        bool
	Opcode     byte
	Masked     bool
	PayloadLen byte // 7-bit length field
	MaskKey    [MaskKeyLen]byte
	Payload    []byte // unmasked
}

// Kind classifies the frame header.
func (f *Frame) Kind() Kind {
	return classify(f.header())
}

// Text returns the payload as a string.
func (f *Frame) Text() string {
	return string(f.Payload)
}

func (f *Frame) header() (byte, byte) {
	b0 := f.Opcode & OpcodeBits
	if f.Fin {
		b0 |= FinBit
	}
	b1 := f.PayloadLen & LengthBits
	if f.Masked {
		b1 |= MaskBit
	}
	return b0, b1
}

func classify(b0, b1 byte) Kind {
	if b0&RsvBits != 0 {
		return KindReserved
	}
	switch op := b0 & OpcodeBits; {
	case op >= OpcodeClose && op <= OpcodePong:
		return KindControl
	case op == OpcodeContinuation:
		return KindContinuation
	case op == OpcodeBinary:
		return KindBinary
	case op != OpcodeText:
		return KindReserved
	}
	if b0&FinBit == 0 {
		return KindFragment
	}
	if n := b1 & LengthBits; n == extLen16 || n == extLen64 {
		return KindExtendedLength
	}
	return KindText
}

// parseHeader decodes the two fixed header bytes. It fails for every
// variant except KindText.
func parseHeader(b0, b1 byte) (*Frame, error) {
	if k := classify(b0, b1); k != KindText {
		return nil, unsupported(k, b0&OpcodeBits)
	}
	return &Frame{
		Fin:        b0&FinBit != 0,
		Opcode:     b0 & OpcodeBits,
		Masked:     b1&MaskBit != 0,
		PayloadLen: b1 & LengthBits,
	}, nil
}

// Mask XORs buf in place with key. Masking and unmasking are the same
// operation.
func Mask(buf []byte, key [MaskKeyLen]byte) {
	for i := range buf {
		buf[i] ^= key[i%MaskKeyLen]
	}
}
