// Package wire implements the length-framed message codec shared by host and guests
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"io"

	"github.com/NVIDIA/wasmgate/cmn/cos"
)

type Method uint8

const (
	MethodGet Method = iota
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodConnect
	MethodOptions
	MethodTrace
	MethodPatch

	methodLast // keep last
)

var methodText = [...]string{"GET", "HEAD", "POST", "PUT", "DELETE", "CONNECT", "OPTIONS", "TRACE", "PATCH"}

func (m Method) String() string {
	if m < methodLast {
		return methodText[m]
	}
	return "INVALID"
}

func WriteMethod(w io.Writer, m Method) error { return WriteU8(w, uint8(m)) }

func ReadMethod(r io.Reader) (Method, error) {
	v, err := ReadU8(r)
	if err != nil {
		return 0, err
	}
	if Method(v) >= methodLast {
		return 0, cos.NewErrInvalidData("method tag %d", v)
	}
	return Method(v), nil
}
