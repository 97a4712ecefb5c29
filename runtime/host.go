// Package runtime hosts sandboxed guest modules behind a request/response boundary
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"errors"
	"io"

	"github.com/NVIDIA/wasmgate/cmn/nlog"
	"github.com/NVIDIA/wasmgate/transport"
	wasmtime "github.com/bytecodealliance/wasmtime-go/v25"
)

// The ABI is the narrow surface a guest sees: three imports under the
// "stream" namespace. All host<->guest transfer is an explicit copy through
// the guest's exported linear memory; there is no shared mutable memory.
const (
	abiNamespace = "stream"
	abiMemory    = "memory"
	abiMain      = "main"
	abiStart     = "_start"
)

const (
	abiEOF  = -1 // read: end of stream; write: peer gone
	abiFail = -2 // stream identifier unknown or host-side failure
)

// newLinker binds the stream imports to one connection. The linker is
// per-invocation: the imports capture the Conn by closure and mutate it
// through its own locking; the artifact (compiled module) stays shared.
func newLinker(conn *Conn) (*wasmtime.Linker, error) {
	linker := wasmtime.NewLinker(Engine())

	err := linker.FuncWrap(abiNamespace, "start", func() int64 {
		id := conn.StartStream()
		if nlog.Verbose() {
			nlog.Infof("%s: stream.start -> %d", conn.tag, id)
		}
		return int64(id)
	})
	if err != nil {
		return nil, err
	}

	err = linker.FuncWrap(abiNamespace, "read",
		func(caller *wasmtime.Caller, stream int64, ptr, length int32) (int64, *wasmtime.Trap) {
			buf, trap := guestSlice(caller, ptr, length)
			if trap != nil {
				return 0, trap
			}
			s, ok := conn.Stream(uint64(stream))
			if !ok {
				return abiFail, nil
			}
			n, err := s.Read(buf)
			if n == 0 && err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, transport.ErrClosed) {
					return abiEOF, nil
				}
				return abiFail, nil
			}
			return int64(n), nil
		})
	if err != nil {
		return nil, err
	}

	err = linker.FuncWrap(abiNamespace, "write",
		func(caller *wasmtime.Caller, stream int64, ptr, length int32) (int64, *wasmtime.Trap) {
			buf, trap := guestSlice(caller, ptr, length)
			if trap != nil {
				return 0, trap
			}
			s, ok := conn.Stream(uint64(stream))
			if !ok {
				return abiFail, nil
			}
			n, err := s.Write(buf)
			if n == 0 && err != nil {
				return abiEOF, nil
			}
			return int64(n), nil
		})
	if err != nil {
		return nil, err
	}
	return linker, nil
}

// guestSlice translates (ptr, len) into the guest's linear memory;
// out-of-range access traps the invocation.
func guestSlice(caller *wasmtime.Caller, ptr, length int32) ([]byte, *wasmtime.Trap) {
	ext := caller.GetExport(abiMemory)
	if ext == nil {
		return nil, wasmtime.NewTrap("no exported memory")
	}
	mem := ext.Memory()
	if mem == nil {
		return nil, wasmtime.NewTrap("export " + abiMemory + " is not a memory")
	}
	data := mem.UnsafeData(caller)
	lo, n := int64(uint32(ptr)), int64(uint32(length))
	if lo+n > int64(len(data)) {
		return nil, wasmtime.NewTrap("memory access out of range")
	}
	return data[lo : lo+n], nil
}
