// Package transport multiplexes logical byte streams between host and guests
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"github.com/NVIDIA/wasmgate/cmn/cos"
)

type (
	// Accepted is one inbound primary stream awaiting dispatch. To may carry
	// an explicit target; when zero the scheduler routes by (method, URI).
	Accepted struct {
		Conn Duplex
		To   cos.Identifier
	}

	// Acceptor is the front door: a source of inbound primary streams.
	Acceptor interface {
		// Accept blocks for the next inbound stream; ok is false once the
		// acceptor is closed and drained.
		Accept() (msg Accepted, ok bool)
		Close()
	}

	// Bridge is the in-memory acceptor: callers obtain one half of a stream
	// pair, the other half is enqueued for the scheduler. Used for tests and
	// same-process composition, and by guests opening sub-streams.
	Bridge struct {
		ch     chan Accepted
		stopCh *cos.StopCh
	}
)

// interface guard
var _ Acceptor = (*Bridge)(nil)

const dfltBurst = 128 // accept-queue depth

func NewBridge(burst int) *Bridge {
	if burst <= 0 {
		burst = dfltBurst
	}
	return &Bridge{ch: make(chan Accepted, burst), stopCh: cos.NewStopCh()}
}

// Dial opens a new primary stream; the caller writes a serialized request on
// the returned half and reads the response from it.
func (b *Bridge) Dial() *Stream { return b.DialTo(cos.Identifier{}) }

func (b *Bridge) DialTo(id cos.Identifier) *Stream {
	caller, server := Pair()
	if !b.Inject(server, id) {
		caller.Close()
	}
	return caller
}

// Inject enqueues an accept event for an existing stream half
// (e.g. the host side of a guest-opened sub-stream).
func (b *Bridge) Inject(conn Duplex, to cos.Identifier) bool {
	select {
	case b.ch <- Accepted{Conn: conn, To: to}:
		return true
	case <-b.stopCh.Listen():
		return false
	}
}

func (b *Bridge) Accept() (Accepted, bool) {
	select {
	case msg := <-b.ch:
		return msg, true
	case <-b.stopCh.Listen():
		// drain anything raced in before the stop
		select {
		case msg := <-b.ch:
			return msg, true
		default:
			return Accepted{}, false
		}
	}
}

func (b *Bridge) TryAccept() (Accepted, bool) {
	select {
	case msg := <-b.ch:
		return msg, true
	default:
		return Accepted{}, false
	}
}

func (b *Bridge) Close() { b.stopCh.Close() }
