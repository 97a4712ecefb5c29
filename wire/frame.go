// Package wire implements the length-framed message codec shared by host and guests
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/NVIDIA/wasmgate/cmn/cos"
)

// All integers on the wire are little-endian regardless of host byte order.

type FrameKind uint8

const (
	FrameData   FrameKind = 0x00
	FrameHeader FrameKind = 0x01
)

// Frame is the smallest unit on the wire: a one-byte kind and an eight-byte
// payload length. Exactly `Length` payload bytes follow the frame.
type Frame struct {
	Length uint64
	Kind   FrameKind
}

const FrameSize = 1 + 8 // kind + length

func (k FrameKind) String() string {
	switch k {
	case FrameData:
		return "data"
	case FrameHeader:
		return "header"
	}
	return "unknown"
}

//
// scalar codec
//

func WriteU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func WriteU16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func WriteU64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// WriteString emits a u64 length followed by the raw UTF-8 bytes.
func WriteString(w io.Writer, s string) error {
	if err := WriteU64(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func ReadU8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func ReadU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func ReadU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// ReadString decodes a u64 length-prefixed UTF-8 string; `limit` guards
// against absurd allocations from a corrupt length.
func ReadString(r io.Reader, limit uint64) (string, error) {
	l, err := ReadU64(r)
	if err != nil {
		return "", err
	}
	if l > limit {
		return "", cos.NewErrInvalidData("string length %d exceeds limit %d", l, limit)
	}
	b := make([]byte, l)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", cos.NewErrInvalidData("string is not valid UTF-8")
	}
	return string(b), nil
}

//
// frame codec
//

func WriteFrame(w io.Writer, fr Frame) error {
	var b [FrameSize]byte
	b[0] = byte(fr.Kind)
	binary.LittleEndian.PutUint64(b[1:], fr.Length)
	_, err := w.Write(b[:])
	return err
}

func ReadFrame(r io.Reader) (fr Frame, err error) {
	var b [FrameSize]byte
	if _, err = io.ReadFull(r, b[:]); err != nil {
		return
	}
	switch FrameKind(b[0]) {
	case FrameData, FrameHeader:
		fr.Kind = FrameKind(b[0])
	default:
		return fr, cos.NewErrInvalidData("frame kind 0x%02x", b[0])
	}
	fr.Length = binary.LittleEndian.Uint64(b[1:])
	return
}
