// Package cos provides common low-level types and utilities for all wasmgate packages
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Identifier is a 128-bit guest identity. Named guests derive a stable v5 UUID
// from their URL under the fixed URL namespace; anonymous guests get a random v4.
// Equality is byte equality.
type Identifier [16]byte

func NewIdentifier() Identifier {
	return Identifier(uuid.New())
}

func NamedIdentifier(url string) Identifier {
	return Identifier(uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)))
}

func (id Identifier) IsZero() bool { return id == Identifier{} }

func (id Identifier) String() string { return hex.EncodeToString(id[:]) }

// Short returns a truncated form for log lines.
func (id Identifier) Short() string { return hex.EncodeToString(id[:4]) }
