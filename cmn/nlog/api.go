// Package nlog - wasmgate logger, provides buffering, timestamping, writing, and flushing
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import "flag"

func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", true, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

func Infoln(args ...any)                  { log(sevInfo, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, format, args...) }
func Warningln(args ...any)               { log(sevWarn, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, format, args...) }
func Errorln(args ...any)                 { log(sevErr, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, format, args...) }

func SetLogDir(dir string) { logDir = dir }
func SetTitle(s string)    { title = s }

// verbose gates per-invocation tracing; see the -v CLI flag
func SetVerbose(v bool) { verbose.Store(v) }
func Verbose() bool     { return verbose.Load() }
