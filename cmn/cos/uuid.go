// Package cos provides common low-level types and utilities for all wasmgate packages
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"sync"

	"github.com/teris-io/shortid"
)

// Alphabet similar to shortid.DEFAULT_ABC, reshuffled
const uuidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	sid     *shortid.Shortid
	sidOnce sync.Once
)

func InitShortID(seed uint64) {
	sid = shortid.MustNew(4 /*worker*/, uuidABC, seed)
}

// GenTag generates a short unique tag to correlate an invocation's log lines.
func GenTag() string {
	sidOnce.Do(func() {
		if sid == nil {
			InitShortID(42)
		}
	})
	return sid.MustGenerate()
}
