// Package runtime hosts sandboxed guest modules behind a request/response boundary
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"sync"
	"time"

	"github.com/NVIDIA/wasmgate/cmn"
	"github.com/NVIDIA/wasmgate/cmn/nlog"
	wasmtime "github.com/bytecodealliance/wasmtime-go/v25"
)

// The module engine is process-wide: compilation contexts are shared and
// thread-safe, while each invocation gets its own store (linear memory, fuel,
// host data). The engine's epoch is advanced by a single ticker goroutine;
// stores arm a per-invocation epoch deadline to bound wall-clock time.

var (
	engine     *wasmtime.Engine
	engineOnce sync.Once
	epochStop  chan struct{}
)

func Engine() *wasmtime.Engine {
	engineOnce.Do(initEngine)
	return engine
}

func initEngine() {
	conf := wasmtime.NewConfig()
	conf.SetConsumeFuel(true)
	conf.SetEpochInterruption(true)
	engine = wasmtime.NewEngineWithConfig(conf)
	epochStop = make(chan struct{})
	go tick(cmn.GCO.Get().Guest.EpochTick)
}

func tick(ival time.Duration) {
	if ival <= 0 {
		ival = 10 * time.Millisecond
	}
	t := time.NewTicker(ival)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			engine.IncrementEpoch()
		case <-epochStop:
			return
		}
	}
}

// ShutdownEngine stops the epoch ticker; at process exit only.
func ShutdownEngine() {
	if epochStop != nil {
		close(epochStop)
		nlog.Flush(true)
	}
}

// epochTicks converts an invocation deadline into epoch-deadline ticks.
func epochTicks(deadline time.Duration) uint64 {
	tickIval := cmn.GCO.Get().Guest.EpochTick
	if tickIval <= 0 || deadline <= 0 {
		return 1
	}
	n := uint64(deadline / tickIval)
	return max(n, 1)
}
