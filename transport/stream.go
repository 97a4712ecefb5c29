// Package transport multiplexes logical byte streams between host and guests
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"errors"
	"io"
	"sync"

	"github.com/NVIDIA/wasmgate/cmn"
	"github.com/NVIDIA/wasmgate/cmn/debug"
)

var (
	// ErrWouldBlock is returned by TryRead/TryWrite instead of parking.
	ErrWouldBlock = errors.New("transport: operation would block")

	// ErrClosed is returned on use of a closed stream or half.
	ErrClosed = errors.New("transport: stream closed")
)

type (
	// Duplex is the bidirectional byte stream the runtime operates on: the
	// in-memory Stream below, or a network connection front-ending one.
	Duplex interface {
		io.ReadWriteCloser
		CloseWrite() error
	}

	// pipe is one direction of a stream pair. Bytes written by one endpoint
	// are observed by the peer in order; a full buffer grows up to growCap
	// and parks writers beyond that.
	pipe struct {
		mu      sync.Mutex
		rd, wr  *sync.Cond
		ring    *ring
		growCap int
		wclosed bool // no further writes; reader drains, then EOF
		rclosed bool // reader gone; writes fail, buffered bytes dropped
	}

	// Stream is one endpoint of an in-memory bidirectional stream.
	Stream struct {
		in  *pipe // peer writes, we read
		out *pipe // we write, peer reads
	}

	// ReadHalf and WriteHalf are the two directions of a split Stream,
	// referring to the same underlying queues.
	ReadHalf struct {
		p *pipe
	}
	WriteHalf struct {
		p *pipe
	}
)

// interface guard
var _ Duplex = (*Stream)(nil)

func newPipe(capacity, growCap int) *pipe {
	debug.Assert(capacity > 0)
	p := &pipe{ring: newRing(capacity), growCap: max(growCap, capacity)}
	p.rd = sync.NewCond(&p.mu)
	p.wr = sync.NewCond(&p.mu)
	return p
}

// Pair returns the two endpoints of a new bidirectional stream, with buffer
// sizing from the global config.
func Pair() (*Stream, *Stream) {
	conf := cmn.GCO.Get()
	return NewPair(conf.Stream.RingCapacity, conf.Stream.GrowCap)
}

func NewPair(capacity, growCap int) (*Stream, *Stream) {
	ab, ba := newPipe(capacity, growCap), newPipe(capacity, growCap)
	a := &Stream{in: ba, out: ab}
	b := &Stream{in: ab, out: ba}
	return a, b
}

//////////
// pipe //
//////////

func (p *pipe) read(b []byte, block bool) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.rclosed {
			return 0, ErrClosed
		}
		if p.ring.len() > 0 {
			n := p.ring.read(b)
			p.wr.Broadcast()
			return n, nil
		}
		if p.wclosed {
			return 0, io.EOF
		}
		if !block {
			return 0, ErrWouldBlock
		}
		p.rd.Wait()
	}
}

func (p *pipe) write(b []byte, block bool) (n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(b) > 0 {
		if p.wclosed || p.rclosed {
			return n, ErrClosed
		}
		if p.ring.avail() == 0 && p.ring.size() < p.growCap {
			p.ring.grow(min(p.ring.size()*2, p.growCap))
		}
		if w := p.ring.write(b); w > 0 {
			n += w
			b = b[w:]
			p.rd.Broadcast()
			continue
		}
		if !block {
			if n == 0 {
				return 0, ErrWouldBlock
			}
			return n, nil
		}
		p.wr.Wait()
	}
	return n, nil
}

func (p *pipe) closeWrite() {
	p.mu.Lock()
	p.wclosed = true
	p.rd.Broadcast()
	p.wr.Broadcast()
	p.mu.Unlock()
}

func (p *pipe) closeRead() {
	p.mu.Lock()
	p.rclosed = true
	p.rd.Broadcast()
	p.wr.Broadcast()
	p.mu.Unlock()
}

////////////
// Stream //
////////////

// Read blocks until bytes are available, the peer half-closes (EOF), or the
// stream is torn down.
func (s *Stream) Read(b []byte) (int, error) { return s.in.read(b, true) }

// Write blocks while the buffer is at its growth cap and the peer is not
// draining; it returns only once all of b is queued.
func (s *Stream) Write(b []byte) (int, error) { return s.out.write(b, true) }

// TryRead and TryWrite are the cooperative, non-parking variants.
func (s *Stream) TryRead(b []byte) (int, error)  { return s.in.read(b, false) }
func (s *Stream) TryWrite(b []byte) (int, error) { return s.out.write(b, false) }

// CloseWrite half-closes: the peer drains buffered bytes, then sees EOF.
func (s *Stream) CloseWrite() error {
	s.out.closeWrite()
	return nil
}

// Close tears down both directions and wakes any parked peer.
func (s *Stream) Close() error {
	s.out.closeWrite()
	s.in.closeRead()
	return nil
}

// Split transitions the endpoint into its read-only and write-only halves.
// The halves share the stream's queues; closing either removes its direction.
func (s *Stream) Split() (*ReadHalf, *WriteHalf) {
	return &ReadHalf{p: s.in}, &WriteHalf{p: s.out}
}

func (rh *ReadHalf) Read(b []byte) (int, error) { return rh.p.read(b, true) }
func (rh *ReadHalf) Close() error {
	rh.p.closeRead()
	return nil
}

func (wh *WriteHalf) Write(b []byte) (int, error) { return wh.p.write(b, true) }
func (wh *WriteHalf) Close() error {
	wh.p.closeWrite()
	return nil
}
