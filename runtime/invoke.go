// Package runtime hosts sandboxed guest modules behind a request/response boundary
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/NVIDIA/wasmgate/cmn"
	"github.com/NVIDIA/wasmgate/cmn/cos"
	"github.com/NVIDIA/wasmgate/cmn/mono"
	"github.com/NVIDIA/wasmgate/cmn/nlog"
	"github.com/NVIDIA/wasmgate/stats"
	"github.com/NVIDIA/wasmgate/transport"
	"github.com/NVIDIA/wasmgate/wire"
	wasmtime "github.com/bytecodealliance/wasmtime-go/v25"
)

// Per-invocation state machine:
//
//	Accepted -> Routed -> Instantiated -> Running -> Completing -> Done
//	                |          |             |            |
//	                +--> Failed+------> Failed+----> Failed
//
// Failures synthesize a response (404 unrouted, 413 oversized, 504 fuel,
// 500 otherwise) unless the guest already produced output, in which case the
// connection is closed without further bytes. A malformed request head and an
// expired deadline close the connection without any response.

type failKind int

const (
	failNone failKind = iota
	failDecode
	failTooLarge
	failRoute
	failInstantiate
	failFuel
	failDeadline
	failTrap
	failHost
)

var failText = [...]string{"none", "decode", "too-large", "route", "instantiate", "fuel", "deadline", "trap", "host"}

func (k failKind) String() string { return failText[k] }

// counting wraps the primary stream to observe whether the guest produced
// any response bytes before a failure.
type counting struct {
	transport.Duplex
	n atomic.Int64
}

func (c *counting) Write(b []byte) (int, error) {
	n, err := c.Duplex.Write(b)
	c.n.Add(int64(n))
	return n, err
}

func (r *Runtime) dispatch(msg transport.Accepted) {
	var (
		tag     = cos.GenTag()
		started = mono.NanoTime()
		conf    = cmn.GCO.Get()
	)
	head, req, err := readHead(msg.Conn, conf.Stream.MaxHdrSize)
	if err != nil {
		// the stream is corrupt: close without a response, skip routing
		nlog.Warningf("%s: %v", tag, err)
		msg.Conn.Close()
		stats.Invocation(failDecode.String(), mono.Since(started))
		return
	}
	if nlog.Verbose() {
		nlog.Infof("%s: %s %s [%d bytes]", tag, req.Method, req.URI, req.ContentLength)
	}

	primary := &counting{Duplex: msg.Conn}
	if int64(req.ContentLength) > conf.Guest.MaxBody {
		r.fail(primary, tag, failTooLarge, started)
		return
	}

	target := msg.To
	if target.IsZero() {
		var ok bool
		if target, ok = r.router.Route(req.Method, req.URI); !ok {
			r.fail(primary, tag, failRoute, started)
			return
		}
	}
	artifact := r.Resolve(target)
	if artifact == nil {
		nlog.Errorf("%s: guest %s is not registered", tag, target.Short())
		r.fail(primary, tag, failInstantiate, started)
		return
	}

	conn := newConn(primary, head, r.bridge, tag)

	// the epoch deadline bounds guest execution; this watchdog additionally
	// drops the connection - waking any peer parked on its streams - when
	// the invocation blocks in host calls past its deadline
	watchdog := time.AfterFunc(conf.Guest.Deadline, func() {
		nlog.Warningf("%s: deadline expired, dropping connection", tag)
		conn.Close()
	})
	kind := execute(artifact, conn, tag)
	watchdog.Stop()
	if kind == failNone {
		// the entrypoint returned; whatever the guest wrote on stream 0 is
		// the response
		conn.primary.CloseWrite()
		conn.Close()
		stats.Invocation("ok", mono.Since(started))
		return
	}
	if primary.n.Load() > 0 {
		// partial output: close without further bytes
		nlog.Warningf("%s: %s after partial output, closing", tag, kind)
		conn.Close()
		stats.Invocation(kind.String(), mono.Since(started))
		return
	}
	r.fail(primary, tag, kind, started)
	conn.Close()
}

// fail synthesizes the response for an error kind and tears the stream down.
func (r *Runtime) fail(conn transport.Duplex, tag string, kind failKind, started int64) {
	status := wire.StatusInternalServerError
	switch kind {
	case failTooLarge:
		status = wire.StatusPayloadTooLarge
	case failRoute:
		status = wire.StatusNotFound
	case failFuel:
		status = wire.StatusGatewayTimeout
	case failDeadline:
		// the deadline drops the connection; the caller observes EOF
		conn.Close()
		stats.Invocation(kind.String(), mono.Since(started))
		return
	}
	resp := wire.NewResponse(status, nil)
	if err := resp.Write(conn); err != nil {
		nlog.Warningf("%s: failed to send %d: %v", tag, status, err)
	}
	conn.CloseWrite()
	conn.Close()
	stats.Invocation(kind.String(), mono.Since(started))
}

// execute instantiates the artifact against the connection and drives the
// entrypoint to completion under the fuel budget and epoch deadline.
func execute(artifact *Artifact, conn *Conn, tag string) failKind {
	conf := cmn.GCO.Get().Guest
	store := wasmtime.NewStore(Engine())
	if err := store.SetFuel(conf.FuelBudget); err != nil {
		nlog.Errorf("%s: %v", tag, err)
		return failHost
	}
	store.SetEpochDeadline(epochTicks(conf.Deadline))

	linker, err := newLinker(conn)
	if err != nil {
		nlog.Errorf("%s: %v", tag, err)
		return failHost
	}
	instance, err := linker.Instantiate(store, artifact.module)
	if err != nil {
		nlog.Errorf("%s: failed to instantiate: %v", tag, err)
		return failInstantiate
	}

	if entry := instance.GetFunc(store, abiMain); entry != nil {
		_, err = entry.Call(store, 0, 0)
	} else if entry := instance.GetFunc(store, abiStart); entry != nil {
		_, err = entry.Call(store)
	} else {
		nlog.Errorf("%s: no entrypoint", tag)
		return failInstantiate
	}
	if err != nil {
		kind := classify(err)
		nlog.Warningf("%s: guest failed (%s): %v", tag, kind, err)
		return kind
	}
	return failNone
}

func classify(err error) failKind {
	trap, ok := err.(*wasmtime.Trap)
	if !ok {
		return failHost
	}
	if code := trap.Code(); code != nil {
		switch *code {
		case wasmtime.OutOfFuel:
			return failFuel
		case wasmtime.Interrupt:
			return failDeadline
		}
	}
	return failTrap
}

// readHead consumes exactly one Header frame plus payload from the stream,
// parses the request head, and returns the raw bytes so that the guest can
// re-read the request from its first byte.
func readHead(conn io.Reader, maxHdr int64) (head []byte, req *wire.Request, err error) {
	raw := make([]byte, wire.FrameSize, wire.FrameSize+64)
	if _, err = io.ReadFull(conn, raw); err != nil {
		return nil, nil, err
	}
	if kind := wire.FrameKind(raw[0]); kind != wire.FrameHeader {
		return nil, nil, cos.NewErrInvalidData("%s frame where a header was required", kind)
	}
	length := binary.LittleEndian.Uint64(raw[1:])
	if length > uint64(maxHdr) {
		return nil, nil, cos.NewErrInvalidData("header of %d bytes exceeds limit %d", length, maxHdr)
	}
	raw = append(raw, make([]byte, length)...)
	if _, err = io.ReadFull(conn, raw[wire.FrameSize:]); err != nil {
		return nil, nil, fmt.Errorf("truncated header: %w", err)
	}
	req, err = wire.ReadRequest(bytes.NewReader(raw), maxHdr)
	if err != nil {
		return nil, nil, err
	}
	req.Body = nil // the guest, not the host, consumes the body
	return raw, req, nil
}
