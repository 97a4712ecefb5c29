// Package transport multiplexes logical byte streams between host and guests
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"net"

	"github.com/NVIDIA/wasmgate/cmn/cos"
	"github.com/NVIDIA/wasmgate/cmn/nlog"
)

type (
	// TCPAcceptor treats each accepted connection as an independent primary
	// stream; requests are routed by (method, URI).
	TCPAcceptor struct {
		l      net.Listener
		ch     chan Accepted
		stopCh *cos.StopCh
	}

	netConn struct {
		net.Conn
	}
)

// interface guard
var _ Acceptor = (*TCPAcceptor)(nil)

func (c netConn) CloseWrite() error {
	if tc, ok := c.Conn.(*net.TCPConn); ok {
		return tc.CloseWrite()
	}
	return nil
}

func NewTCPAcceptor(addr string) (*TCPAcceptor, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	t := &TCPAcceptor{l: l, ch: make(chan Accepted, dfltBurst), stopCh: cos.NewStopCh()}
	go t.listen()
	return t, nil
}

func (t *TCPAcceptor) Addr() net.Addr { return t.l.Addr() }

func (t *TCPAcceptor) listen() {
	for {
		conn, err := t.l.Accept()
		if err != nil {
			select {
			case <-t.stopCh.Listen():
				return
			default:
			}
			nlog.Errorf("tcp acceptor: %v", err)
			return
		}
		select {
		case t.ch <- Accepted{Conn: netConn{conn}}:
		case <-t.stopCh.Listen():
			conn.Close()
			return
		}
	}
}

func (t *TCPAcceptor) Accept() (Accepted, bool) {
	select {
	case msg := <-t.ch:
		return msg, true
	case <-t.stopCh.Listen():
		return Accepted{}, false
	}
}

func (t *TCPAcceptor) Close() {
	t.stopCh.Close()
	t.l.Close()
}
