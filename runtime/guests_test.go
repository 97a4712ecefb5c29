// Package runtime hosts sandboxed guest modules behind a request/response boundary
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package runtime_test

import (
	"testing"

	wasmtime "github.com/bytecodealliance/wasmtime-go/v25"
)

// Guest fixtures, hand-written in the text format. Each exports "memory" and
// a "main" entrypoint and talks to the host exclusively through the three
// stream imports.

// staticGuest ignores the request and answers 200 "Hello, World!".
// The 41 bytes at offset 0 are the serialized response: a Header frame
// (status 200, content length 13) followed by one Data frame.
const staticGuest = `
(module
  (import "stream" "write" (func $write (param i64 i32 i32) (result i64)))
  (memory (export "memory") 1)
  (data (i32.const 0)
    "\01\0a\00\00\00\00\00\00\00\c8\00\0d\00\00\00\00\00\00\00\00\0d\00\00\00\00\00\00\00Hello, World!")
  (func (export "main") (param i32 i32) (result i32)
    (drop (call $write (i64.const 0) (i32.const 0) (i32.const 41)))
    (i32.const 0)))
`

// pongGuest answers 200 "PONG!".
const pongGuest = `
(module
  (import "stream" "write" (func $write (param i64 i32 i32) (result i64)))
  (memory (export "memory") 1)
  (data (i32.const 0)
    "\01\0a\00\00\00\00\00\00\00\c8\00\05\00\00\00\00\00\00\00\00\05\00\00\00\00\00\00\00PONG!")
  (func (export "main") (param i32 i32) (result i32)
    (drop (call $write (i64.const 0) (i32.const 0) (i32.const 33)))
    (i32.const 0)))
`

// echoGuest parses the request head off stream 0, answers 201 with the same
// content length, and relays the request's body frames verbatim.
const echoGuest = `
(module
  (import "stream" "read" (func $read (param i64 i32 i32) (result i64)))
  (import "stream" "write" (func $write (param i64 i32 i32) (result i64)))
  (memory (export "memory") 2)
  (func $read_exact (param $s i64) (param $ptr i32) (param $len i32)
    (local $off i32) (local $n i64)
    (block $done
      (loop $more
        (br_if $done (i32.ge_u (local.get $off) (local.get $len)))
        (local.set $n (call $read (local.get $s)
          (i32.add (local.get $ptr) (local.get $off))
          (i32.sub (local.get $len) (local.get $off))))
        (if (i64.le_s (local.get $n) (i64.const 0)) (then unreachable))
        (local.set $off (i32.add (local.get $off) (i32.wrap_i64 (local.get $n))))
        (br $more))))
  (func (export "main") (param i32 i32) (result i32)
    (local $hlen i32) (local $cl i64) (local $n i64)
    ;; request header frame, then its payload
    (call $read_exact (i64.const 0) (i32.const 0) (i32.const 9))
    (local.set $hlen (i32.wrap_i64 (i64.load (i32.const 1))))
    (call $read_exact (i64.const 0) (i32.const 16) (local.get $hlen))
    ;; content length occupies the payload's last eight bytes
    (local.set $cl (i64.load
      (i32.sub (i32.add (i32.const 16) (local.get $hlen)) (i32.const 8))))
    ;; response header: 201, same content length
    (i32.store8 (i32.const 1024) (i32.const 1))
    (i64.store (i32.const 1025) (i64.const 10))
    (i32.store16 (i32.const 1033) (i32.const 201))
    (i64.store (i32.const 1035) (local.get $cl))
    (drop (call $write (i64.const 0) (i32.const 1024) (i32.const 19)))
    ;; the request's remaining bytes are its body frames; relay them
    (block $eof
      (loop $copy
        (local.set $n (call $read (i64.const 0) (i32.const 4096) (i32.const 32768)))
        (br_if $eof (i64.le_s (local.get $n) (i64.const 0)))
        (drop (call $write (i64.const 0) (i32.const 4096) (i32.wrap_i64 (local.get $n))))
        (br $copy)))
    (i32.const 0)))
`

// pingGuest opens a sub-stream, issues GET /pong over it, and relays the
// sub-response's body back on stream 0 under its own 200 header.
// The 31 bytes at offset 0 are the serialized sub-request.
const pingGuest = `
(module
  (import "stream" "start" (func $start (result i64)))
  (import "stream" "read" (func $read (param i64 i32 i32) (result i64)))
  (import "stream" "write" (func $write (param i64 i32 i32) (result i64)))
  (memory (export "memory") 1)
  (data (i32.const 0)
    "\01\16\00\00\00\00\00\00\00\00\05\00\00\00\00\00\00\00/pong\00\00\00\00\00\00\00\00")
  (func $read_exact (param $s i64) (param $ptr i32) (param $len i32)
    (local $off i32) (local $n i64)
    (block $done
      (loop $more
        (br_if $done (i32.ge_u (local.get $off) (local.get $len)))
        (local.set $n (call $read (local.get $s)
          (i32.add (local.get $ptr) (local.get $off))
          (i32.sub (local.get $len) (local.get $off))))
        (if (i64.le_s (local.get $n) (i64.const 0)) (then unreachable))
        (local.set $off (i32.add (local.get $off) (i32.wrap_i64 (local.get $n))))
        (br $more))))
  (func (export "main") (param i32 i32) (result i32)
    (local $s i64) (local $hlen i32) (local $cl i64) (local $n i64)
    (local.set $s (call $start))
    (drop (call $write (local.get $s) (i32.const 0) (i32.const 31)))
    ;; sub-response header frame, then its payload
    (call $read_exact (local.get $s) (i32.const 256) (i32.const 9))
    (local.set $hlen (i32.wrap_i64 (i64.load (i32.const 257))))
    (call $read_exact (local.get $s) (i32.const 272) (local.get $hlen))
    (local.set $cl (i64.load
      (i32.sub (i32.add (i32.const 272) (local.get $hlen)) (i32.const 8))))
    ;; our response header: 200, the sub-response's content length
    (i32.store8 (i32.const 512) (i32.const 1))
    (i64.store (i32.const 513) (i64.const 10))
    (i32.store16 (i32.const 521) (i32.const 200))
    (i64.store (i32.const 523) (local.get $cl))
    (drop (call $write (i64.const 0) (i32.const 512) (i32.const 19)))
    ;; relay the sub-response's body frames
    (block $eof
      (loop $copy
        (local.set $n (call $read (local.get $s) (i32.const 1024) (i32.const 16384)))
        (br_if $eof (i64.le_s (local.get $n) (i64.const 0)))
        (drop (call $write (i64.const 0) (i32.const 1024) (i32.wrap_i64 (local.get $n))))
        (br $copy)))
    (i32.const 0)))
`

// infiniteGuest loops unconditionally until the fuel budget traps it.
const infiniteGuest = `
(module
  (memory (export "memory") 1)
  (func (export "main") (param i32 i32) (result i32)
    (loop $spin (br $spin))
    (i32.const 0)))
`

func wat2wasm(t *testing.T, wat string) []byte {
	t.Helper()
	code, err := wasmtime.Wat2Wasm(wat)
	if err != nil {
		t.Fatalf("wat2wasm: %v", err)
	}
	return code
}
