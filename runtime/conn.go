// Package runtime hosts sandboxed guest modules behind a request/response boundary
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"bytes"
	"sync"

	"github.com/NVIDIA/wasmgate/cmn/cos"
	"github.com/NVIDIA/wasmgate/transport"
)

type (
	// replayed serves previously consumed bytes (the request head the
	// scheduler parsed for routing) ahead of the live stream, so that the
	// guest observes the serialized request from its first byte.
	replayed struct {
		transport.Duplex
		head *bytes.Reader
	}

	// Conn is the host-side state for one invocation: the primary stream
	// (id 0) carrying the request in and the response out, plus sub-streams
	// the guest opens via stream.start. Sub-stream identifiers grow
	// monotonically and are never reused within a connection: id k indexes
	// subs[k-1].
	Conn struct {
		primary transport.Duplex
		bridge  *transport.Bridge
		subs    []*transport.Stream
		mu      sync.Mutex
		tag     string
	}
)

func (r *replayed) Read(b []byte) (int, error) {
	if r.head.Len() > 0 {
		return r.head.Read(b)
	}
	return r.Duplex.Read(b)
}

func newConn(primary transport.Duplex, head []byte, bridge *transport.Bridge, tag string) *Conn {
	if len(head) > 0 {
		primary = &replayed{Duplex: primary, head: bytes.NewReader(head)}
	}
	return &Conn{primary: primary, bridge: bridge, tag: tag}
}

// Stream resolves a stream identifier; 0 is always the primary.
func (c *Conn) Stream(id uint64) (transport.Duplex, bool) {
	if id == 0 {
		return c.primary, true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id > uint64(len(c.subs)) {
		return nil, false
	}
	return c.subs[id-1], true
}

// StartStream allocates a sub-stream: the guest-facing half joins the
// connection, the host-facing half is handed to the acceptor as a fresh
// inbound connection.
func (c *Conn) StartStream() uint64 {
	guest, host := transport.Pair()
	c.mu.Lock()
	c.subs = append(c.subs, guest)
	id := uint64(len(c.subs))
	c.mu.Unlock()
	c.bridge.Inject(host, cos.Identifier{})
	return id
}

// Close drops the connection: all streams close, waking any parked peer.
func (c *Conn) Close() {
	c.primary.Close()
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
}
