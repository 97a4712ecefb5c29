// Package cos provides common low-level types and utilities for all wasmgate packages
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"fmt"
	"io"
)

type (
	ErrNotFound struct {
		what string
	}
	// a frame, header, or enumerated tag on the wire failed to decode;
	// the stream that produced it is considered corrupt and is never retried
	ErrInvalidData struct {
		what string
	}
)

// ErrNotFound

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	var target *ErrNotFound
	return errors.As(err, &target)
}

// ErrInvalidData

func NewErrInvalidData(format string, a ...any) *ErrInvalidData {
	return &ErrInvalidData{fmt.Sprintf(format, a...)}
}

func (e *ErrInvalidData) Error() string { return "invalid data: " + e.what }

func IsErrInvalidData(err error) bool {
	var target *ErrInvalidData
	return errors.As(err, &target)
}

// EOF vs short-read normalization: a read that ends mid-value is always unexpected
func IsUnexpectedEOF(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
