// Package wire implements the length-framed message codec shared by host and guests
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"io"

	"github.com/NVIDIA/wasmgate/cmn/cos"
)

type (
	// FrameReader exposes the body of a message: at most `remaining` bytes
	// divided into Data frames chosen by the writer. The next frame is decoded
	// lazily, only once the current one is drained.
	FrameReader struct {
		r         io.Reader
		remaining uint64 // message bytes not yet delivered
		inFrame   uint64 // undrained bytes of the current Data frame
	}

	// FrameWriter emits one Data frame per Write call, up to `remaining`
	// body bytes total. A write that would exceed the declared content
	// length fails without emitting anything.
	FrameWriter struct {
		w         io.Writer
		remaining uint64
	}
)

/////////////////
// FrameReader //
/////////////////

func NewFrameReader(r io.Reader, length uint64) *FrameReader {
	return &FrameReader{r: r, remaining: length}
}

// Len returns the number of body bytes not yet delivered.
func (fr *FrameReader) Len() uint64 { return fr.remaining }

func (fr *FrameReader) Read(p []byte) (int, error) {
	if fr.remaining == 0 {
		return 0, io.EOF
	}
	if fr.inFrame == 0 {
		frame, err := ReadFrame(fr.r)
		if err != nil {
			return 0, err
		}
		if frame.Kind != FrameData {
			return 0, cos.NewErrInvalidData("%s frame inside a body", frame.Kind)
		}
		if frame.Length > fr.remaining {
			return 0, cos.NewErrInvalidData("data frame of %d bytes exceeds the %d remaining", frame.Length, fr.remaining)
		}
		fr.inFrame = frame.Length
		if fr.inFrame == 0 {
			return 0, nil
		}
	}
	if uint64(len(p)) > fr.inFrame {
		p = p[:fr.inFrame]
	}
	n, err := fr.r.Read(p)
	fr.inFrame -= uint64(n)
	fr.remaining -= uint64(n)
	if err == io.EOF && (fr.inFrame > 0 || fr.remaining > 0) {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

/////////////////
// FrameWriter //
/////////////////

func NewFrameWriter(w io.Writer, length uint64) *FrameWriter {
	return &FrameWriter{w: w, remaining: length}
}

// Len returns the number of body bytes still owed.
func (fw *FrameWriter) Len() uint64 { return fw.remaining }

func (fw *FrameWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if uint64(len(p)) > fw.remaining {
		return 0, cos.NewErrInvalidData("write of %d bytes exceeds the %d remaining", len(p), fw.remaining)
	}
	if err := WriteFrame(fw.w, Frame{Kind: FrameData, Length: uint64(len(p))}); err != nil {
		return 0, err
	}
	n, err := fw.w.Write(p)
	fw.remaining -= uint64(n)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return n, err
}
