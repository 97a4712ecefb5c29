// Package wire implements the length-framed message codec shared by host and guests
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package wire_test

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/NVIDIA/wasmgate/cmn/cos"
	"github.com/NVIDIA/wasmgate/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxHdr = 4 * 1024

func TestRequestRoundTrip(t *testing.T) {
	random := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		var (
			method = wire.Method(random.Intn(9))
			uri    = "/route/" + string(rune('a'+random.Intn(26)))
			body   = make([]byte, random.Intn(64*1024))
		)
		random.Read(body)

		var buf bytes.Buffer
		require.NoError(t, wire.NewRequest(method, uri, body).Write(&buf))

		req, err := wire.ReadRequest(&buf, maxHdr)
		require.NoError(t, err)
		assert.Equal(t, method, req.Method)
		assert.Equal(t, uri, req.URI)
		assert.EqualValues(t, len(body), req.ContentLength)

		got, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, body, got)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	body := []byte("Hello, World!")
	var buf bytes.Buffer
	require.NoError(t, wire.NewResponse(wire.StatusCreated, body).Write(&buf))

	resp, err := wire.ReadResponse(&buf, maxHdr)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusCreated, resp.Status)
	assert.EqualValues(t, len(body), resp.ContentLength)

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

// after a successful write the sum of Data frame lengths must equal the
// header's content length, regardless of how the writer chunked the body
func TestFramingInvariant(t *testing.T) {
	random := rand.New(rand.NewSource(11))
	body := make([]byte, 32*1024)
	random.Read(body)

	var buf bytes.Buffer
	req := &wire.Request{
		Method:        wire.MethodPut,
		URI:           "/chunked",
		ContentLength: uint64(len(body)),
		Body:          io.MultiReader(bytes.NewReader(body[:100]), bytes.NewReader(body[100:8000]), bytes.NewReader(body[8000:])),
	}
	require.NoError(t, req.Write(&buf))

	// walk the raw frames
	frame, err := wire.ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.FrameHeader, frame.Kind)
	_, err = io.CopyN(io.Discard, &buf, int64(frame.Length))
	require.NoError(t, err)

	var total uint64
	for buf.Len() > 0 {
		frame, err := wire.ReadFrame(&buf)
		require.NoError(t, err)
		require.Equal(t, wire.FrameData, frame.Kind)
		_, err = io.CopyN(io.Discard, &buf, int64(frame.Length))
		require.NoError(t, err)
		total += frame.Length
	}
	assert.EqualValues(t, len(body), total)
}

func TestReadMessageWrongFrameKind(t *testing.T) {
	var buf bytes.Buffer
	// a Data frame where a Header is required
	buf.Write([]byte{0x00, 0, 0, 0, 0, 0, 0, 0, 0})
	_, err := wire.ReadRequest(&buf, maxHdr)
	assert.True(t, cos.IsErrInvalidData(err), "got: %v", err)
}

func TestBodyNeverMaterializedForHeader(t *testing.T) {
	var buf bytes.Buffer
	body := make([]byte, 1024*1024)
	require.NoError(t, wire.NewRequest(wire.MethodPost, "/big", body).Write(&buf))

	before := buf.Len()
	req, err := wire.ReadRequest(&buf, maxHdr)
	require.NoError(t, err)
	// only the header frame was consumed
	consumed := before - buf.Len()
	assert.Less(t, consumed, 64)
	assert.EqualValues(t, len(body), req.ContentLength)
}

func TestFrameWriterRefusesOverrun(t *testing.T) {
	var buf bytes.Buffer
	fw := wire.NewFrameWriter(&buf, 4)
	n, err := fw.Write([]byte("01234"))
	assert.Zero(t, n)
	assert.True(t, cos.IsErrInvalidData(err))

	n, err = fw.Write([]byte("0123"))
	assert.Equal(t, 4, n)
	assert.NoError(t, err)
}

func TestFrameReaderRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	// announce a 100-byte data frame in a 10-byte body
	wire.WriteFrame(&buf, wire.Frame{Kind: wire.FrameData, Length: 100})
	buf.Write(make([]byte, 100))

	fr := wire.NewFrameReader(&buf, 10)
	_, err := io.ReadAll(fr)
	assert.True(t, cos.IsErrInvalidData(err))
}

func TestFrameReaderRejectsHeaderInBody(t *testing.T) {
	var buf bytes.Buffer
	wire.WriteFrame(&buf, wire.Frame{Kind: wire.FrameHeader, Length: 5})
	buf.WriteString("xxxxx")

	fr := wire.NewFrameReader(&buf, 5)
	_, err := io.ReadAll(fr)
	assert.True(t, cos.IsErrInvalidData(err))
}

func TestFrameReaderTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	wire.WriteFrame(&buf, wire.Frame{Kind: wire.FrameData, Length: 10})
	buf.WriteString("abc") // 7 bytes short

	fr := wire.NewFrameReader(&buf, 10)
	_, err := io.ReadAll(fr)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
