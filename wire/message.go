// Package wire implements the length-framed message codec shared by host and guests
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"bytes"
	"io"

	"github.com/NVIDIA/wasmgate/cmn/cos"
)

type (
	// Request carries a body that is itself a stream, so arbitrarily large
	// bodies are supported without materializing them.
	Request struct {
		Body          io.Reader
		URI           string
		ContentLength uint64
		Method        Method
	}

	Response struct {
		Body          io.Reader
		ContentLength uint64
		Status        Status
	}
)

func NewRequest(m Method, uri string, body []byte) *Request {
	return &Request{
		Method:        m,
		URI:           uri,
		ContentLength: uint64(len(body)),
		Body:          bytes.NewReader(body),
	}
}

func NewResponse(s Status, body []byte) *Response {
	return &Response{
		Status:        s,
		ContentLength: uint64(len(body)),
		Body:          bytes.NewReader(body),
	}
}

// Write emits one Header frame followed by the body as Data frames
// until the declared content length is reached.
func (req *Request) Write(w io.Writer) error {
	var hdr bytes.Buffer
	WriteMethod(&hdr, req.Method)
	WriteString(&hdr, req.URI)
	WriteU64(&hdr, req.ContentLength)
	if err := writeHead(w, hdr.Bytes()); err != nil {
		return err
	}
	return writeBody(w, req.Body, req.ContentLength)
}

func (resp *Response) Write(w io.Writer) error {
	var hdr bytes.Buffer
	WriteStatus(&hdr, resp.Status)
	WriteU64(&hdr, resp.ContentLength)
	if err := writeHead(w, hdr.Bytes()); err != nil {
		return err
	}
	return writeBody(w, resp.Body, resp.ContentLength)
}

// ReadRequest decodes one Header frame and parses the head; the returned
// request's Body delivers the remaining body lazily, frame by frame.
func ReadRequest(r io.Reader, maxHdr int64) (*Request, error) {
	payload, err := readHead(r, maxHdr)
	if err != nil {
		return nil, err
	}
	req := &Request{}
	if req.Method, err = ReadMethod(payload); err != nil {
		return nil, err
	}
	if req.URI, err = ReadString(payload, uint64(maxHdr)); err != nil {
		return nil, err
	}
	if req.ContentLength, err = ReadU64(payload); err != nil {
		return nil, err
	}
	if payload.N != 0 {
		return nil, cos.NewErrInvalidData("%d trailing header bytes", payload.N)
	}
	req.Body = NewFrameReader(r, req.ContentLength)
	return req, nil
}

func ReadResponse(r io.Reader, maxHdr int64) (*Response, error) {
	payload, err := readHead(r, maxHdr)
	if err != nil {
		return nil, err
	}
	resp := &Response{}
	if resp.Status, err = ReadStatus(payload); err != nil {
		return nil, err
	}
	if resp.ContentLength, err = ReadU64(payload); err != nil {
		return nil, err
	}
	if payload.N != 0 {
		return nil, cos.NewErrInvalidData("%d trailing header bytes", payload.N)
	}
	resp.Body = NewFrameReader(r, resp.ContentLength)
	return resp, nil
}

//
// head and body plumbing
//

func writeHead(w io.Writer, payload []byte) error {
	if err := WriteFrame(w, Frame{Kind: FrameHeader, Length: uint64(len(payload))}); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func writeBody(w io.Writer, body io.Reader, length uint64) error {
	if length == 0 {
		return nil
	}
	if body == nil {
		return cos.NewErrInvalidData("nil body with content length %d", length)
	}
	fw := NewFrameWriter(w, length)
	n, err := io.Copy(fw, io.LimitReader(body, int64(length)))
	if err != nil {
		return err
	}
	if uint64(n) != length {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func readHead(r io.Reader, maxHdr int64) (*io.LimitedReader, error) {
	frame, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	if frame.Kind != FrameHeader {
		return nil, cos.NewErrInvalidData("%s frame where a header was required", frame.Kind)
	}
	if frame.Length > uint64(maxHdr) {
		return nil, cos.NewErrInvalidData("header of %d bytes exceeds limit %d", frame.Length, maxHdr)
	}
	return &io.LimitedReader{R: r, N: int64(frame.Length)}, nil
}
