// Package nlog - wasmgate logger, provides buffering, timestamping, writing, and flushing
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

const flushIval = 10 * time.Second

var (
	toStderr     bool
	alsoToStderr bool
	logDir       string
	title        string

	verbose atomic.Bool

	mw        sync.Mutex
	file      *os.File
	writer    *bufio.Writer
	lastFlush int64

	onceInit sync.Once
)

var sevText = [...]string{"I", "W", "E"}

func initFile() {
	if logDir == "" {
		return
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		os.Stderr.WriteString("nlog: " + err.Error() + "\n")
		return
	}
	fqn := filepath.Join(logDir, sname()+".log")
	f, err := os.OpenFile(fqn, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		os.Stderr.WriteString("nlog: " + err.Error() + "\n")
		return
	}
	file = f
	writer = bufio.NewWriterSize(f, 64*1024)
}

func sname() string {
	if title != "" {
		return title
	}
	return filepath.Base(os.Args[0])
}

func log(sev severity, format string, args ...any) {
	var line string
	if format == "" {
		line = fmt.Sprintln(args...)
	} else {
		line = fmt.Sprintf(format, args...)
		if line == "" || line[len(line)-1] != '\n' {
			line += "\n"
		}
	}
	now := time.Now()
	line = sevText[sev] + " " + now.Format("15:04:05.000000") + " " + line

	mw.Lock()
	defer mw.Unlock()
	onceInit.Do(initFile)
	if writer != nil {
		writer.WriteString(line)
		if sev == sevErr || now.UnixNano()-lastFlush > int64(flushIval) {
			writer.Flush()
			lastFlush = now.UnixNano()
		}
		if !alsoToStderr && !toStderr {
			return
		}
	}
	os.Stderr.WriteString(line)
}

// Flush forces buffered output to disk; pass exit=true on process teardown.
func Flush(exit ...bool) {
	mw.Lock()
	if writer != nil {
		writer.Flush()
		if len(exit) > 0 && exit[0] {
			file.Sync()
			file.Close()
			writer, file = nil, nil
		}
	}
	mw.Unlock()
}
