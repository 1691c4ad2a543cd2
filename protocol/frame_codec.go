// File: protocol/frame_codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Encoding and decoding of short text frames, from a stream or from a byte
// slice.

package protocol

import (
	"errors"
	"io"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned for text frames whose payload is not UTF-8.
var ErrInvalidUTF8 = errors.New("protocol: text payload is not valid UTF-8")

// ReadFrame reads exactly one frame from r. An unsupported header is
// rejected as soon as the two header bytes are read; nothing past them is
// consumed. io.EOF is returned unchanged when r ends before a new frame.
func ReadFrame(r io.Reader) (*Frame, error) {
	var hdr [HeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	f, err := parseHeader(hdr[0], hdr[1])
	if err != nil {
		return nil, err
	}
	if f.Masked {
		if _, err := io.ReadFull(r, f.MaskKey[:]); err != nil {
			return nil, eofIsUnexpected(err)
		}
	}
	f.Payload = make([]byte, f.PayloadLen)
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return nil, eofIsUnexpected(err)
	}
	if err := finish(f); err != nil {
		return nil, err
	}
	return f, nil
}

// ReadClientText reads one client-to-server frame and returns its text.
// Client frames must be masked.
func ReadClientText(r io.Reader) (string, error) {
	f, err := ReadFrame(r)
	if err != nil {
		return "", err
	}
	if !f.Masked {
		return "", &FrameError{Kind: KindText, Opcode: f.Opcode, Err: ErrUnmaskedFrame}
	}
	return f.Text(), nil
}

// DecodeFrameFromBytes parses one frame from the start of raw.
// Returns frame, consumed bytes, and error.
// If the frame is incomplete, returns (nil, 0, nil).
func DecodeFrameFromBytes(raw []byte) (*Frame, int, error) {
	if len(raw) < HeaderLen {
		return nil, 0, nil
	}
	f, err := parseHeader(raw[0], raw[1])
	if err != nil {
		return nil, 0, err
	}
	offset := HeaderLen
	if f.Masked {
		if len(raw) < offset+MaskKeyLen {
			return nil, 0, nil
		}
		copy(f.MaskKey[:], raw[offset:])
		offset += MaskKeyLen
	}
	total := offset + int(f.PayloadLen)
	if len(raw) < total {
		return nil, 0, nil
	}
	f.Payload = make([]byte, f.PayloadLen)
	copy(f.Payload, raw[offset:total])
	if err := finish(f); err != nil {
		return nil, 0, err
	}
	return f, total, nil
}

// EncodeText returns an unmasked final text frame carrying text.
func EncodeText(text string) ([]byte, error) {
	return AppendText(nil, text)
}

// AppendText appends an unmasked final text frame to dst.
func AppendText(dst []byte, text string) ([]byte, error) {
	if len(text) > MaxPayloadLen {
		return nil, tooLarge()
	}
	dst = append(dst, TextFrameHeader, byte(len(text)))
	return append(dst, text...), nil
}

// EncodeMaskedText returns a masked final text frame, as a client sends it.
func EncodeMaskedText(text string, key [MaskKeyLen]byte) ([]byte, error) {
	if len(text) > MaxPayloadLen {
		return nil, tooLarge()
	}
	buf := make([]byte, 0, HeaderLen+MaskKeyLen+len(text))
	buf = append(buf, TextFrameHeader, MaskBit|byte(len(text)))
	buf = append(buf, key[:]...)
	start := len(buf)
	buf = append(buf, text...)
	Mask(buf[start:], key)
	return buf, nil
}

func finish(f *Frame) error {
	if f.Masked {
		Mask(f.Payload, f.MaskKey)
	}
	if !utf8.Valid(f.Payload) {
		return &FrameError{Kind: KindText, Opcode: f.Opcode, Err: ErrInvalidUTF8}
	}
	return nil
}

func tooLarge() error {
	return &FrameError{Kind: KindExtendedLength, Opcode: OpcodeText, Err: ErrPayloadTooLarge}
}

func eofIsUnexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
