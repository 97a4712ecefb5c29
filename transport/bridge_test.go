// Package transport multiplexes logical byte streams between host and guests
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"io"
	"testing"

	"github.com/NVIDIA/wasmgate/cmn/cos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeDialAccept(t *testing.T) {
	bridge := NewBridge(4)
	defer bridge.Close()

	caller := bridge.Dial()
	msg, ok := bridge.Accept()
	require.True(t, ok)
	assert.True(t, msg.To.IsZero())

	// the accepted half is the peer of the dialed half
	_, err := caller.Write([]byte("hi"))
	require.NoError(t, err)
	caller.CloseWrite()

	got, err := io.ReadAll(msg.Conn)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
}

func TestBridgeDialTo(t *testing.T) {
	bridge := NewBridge(4)
	defer bridge.Close()

	id := cos.NamedIdentifier("/echo")
	_ = bridge.DialTo(id)

	msg, ok := bridge.Accept()
	require.True(t, ok)
	assert.Equal(t, id, msg.To)
}

func TestBridgeTryAccept(t *testing.T) {
	bridge := NewBridge(4)
	defer bridge.Close()

	_, ok := bridge.TryAccept()
	assert.False(t, ok)

	bridge.Dial()
	_, ok = bridge.TryAccept()
	assert.True(t, ok)
}

func TestBridgeCloseUnblocksAccept(t *testing.T) {
	bridge := NewBridge(4)
	done := make(chan bool, 1)
	go func() {
		_, ok := bridge.Accept()
		done <- ok
	}()
	bridge.Close()
	assert.False(t, <-done)
}
