//go:build debug

// Package debug provides assertions that compile away in production builds
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import (
	"fmt"
	"strings"
)

func ON() bool { return true }

func Assert(cond bool, a ...any) {
	if !cond {
		if len(a) > 0 {
			panic("DEBUG PANIC: " + fmt.Sprint(a...))
		}
		panic("DEBUG PANIC")
	}
}

func Assertf(cond bool, f string, a ...any) {
	if !cond {
		if !strings.HasPrefix(f, "DEBUG PANIC") {
			f = "DEBUG PANIC: " + f
		}
		panic(fmt.Sprintf(f, a...))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		panic("DEBUG PANIC: " + err.Error())
	}
}

func Func(f func()) { f() }
