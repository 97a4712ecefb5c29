// Package cmn provides common constants, types, and utilities for wasmgate
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/NVIDIA/wasmgate/cmn/cos"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

const (
	Version  = "1.0.0"
	Software = "wasmgate/" + Version

	// guest module filename extension recognized by cache scans
	ModuleExt = ".wcgi"

	// upper bound on the request content length accepted by the front door
	DfltMaxBody = 64 * cos.KiB

	// how much a stream buffer may grow past its initial ring capacity
	DfltBufGrowCap = 8 * cos.MiB
)

type (
	// StreamConf parameterizes the in-memory stream multiplexer.
	StreamConf struct {
		RingCapacity int   `json:"ring_capacity"` // initial ring-buffer size per direction
		GrowCap      int   `json:"grow_cap"`      // max buffered bytes before writers block
		MaxHdrSize   int64 `json:"max_hdr_size"`  // decode guard for header payloads
	}

	// GuestConf bounds a single invocation.
	GuestConf struct {
		FuelBudget uint64        `json:"fuel_budget"`
		EpochTick  time.Duration `json:"epoch_tick"`
		Deadline   time.Duration `json:"deadline"`
		MaxBody    int64         `json:"max_body"`
	}

	// CacheConf controls the module cache.
	CacheConf struct {
		Root    string `json:"root"`
		Enabled bool   `json:"enabled"`
	}

	// GatewayConf controls the CGI gateway mode.
	GatewayConf struct {
		Script  string        `json:"script"`
		Bind    string        `json:"bind"`
		MaxBody int64         `json:"max_body"`
		Timeout time.Duration `json:"timeout"`
	}

	Config struct {
		Stream  StreamConf  `json:"stream"`
		Guest   GuestConf   `json:"guest"`
		Cache   CacheConf   `json:"cache"`
		Gateway GatewayConf `json:"gateway"`
		Bind    string      `json:"bind"`
	}

	// gco owns the config; readers get a stable snapshot, updates swap the pointer
	gco struct {
		c atomic.Pointer[Config]
	}
)

var GCO = &gco{}

func init() {
	GCO.Put(DefaultConfig())
}

func DefaultConfig() *Config {
	return &Config{
		Stream: StreamConf{
			RingCapacity: 64 * cos.KiB,
			GrowCap:      DfltBufGrowCap,
			MaxHdrSize:   4 * cos.KiB,
		},
		Guest: GuestConf{
			FuelBudget: 10_000_000,
			EpochTick:  10 * time.Millisecond,
			Deadline:   time.Second,
			MaxBody:    DfltMaxBody,
		},
		Cache: CacheConf{Enabled: true},
		Gateway: GatewayConf{
			Bind:    "127.0.0.1:3000",
			MaxBody: DfltMaxBody,
			Timeout: time.Second,
		},
		Bind: "127.0.0.1:4000",
	}
}

func (g *gco) Get() *Config     { return g.c.Load() }
func (g *gco) Put(conf *Config) { g.c.Store(conf) }

func LoadConfig(fqn string) (*Config, error) {
	b, err := os.ReadFile(fqn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %q", fqn)
	}
	conf := DefaultConfig()
	if err := jsoniter.Unmarshal(b, conf); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %q", fqn)
	}
	return conf, nil
}

func SaveConfig(fqn string, conf *Config) error {
	b, err := jsoniter.MarshalIndent(conf, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(fqn, b, 0o644)
}
