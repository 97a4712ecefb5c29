// Package runtime hosts sandboxed guest modules behind a request/response boundary
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"sync"

	"github.com/NVIDIA/wasmgate/cmn"
	"github.com/NVIDIA/wasmgate/cmn/cos"
	"github.com/NVIDIA/wasmgate/cmn/nlog"
	"github.com/NVIDIA/wasmgate/transport"
	"github.com/NVIDIA/wasmgate/wire"
)

type (
	// Runtime ties the pieces together: acceptors feed the scheduler, the
	// router maps requests to guest identifiers, the cache turns module
	// bytes into artifacts, and registered guests bind identifiers to
	// artifacts.
	Runtime struct {
		cache     *ModCache
		router    *Router
		bridge    *transport.Bridge
		guests    map[cos.Identifier]*Artifact
		acceptors []transport.Acceptor
		gmu       sync.RWMutex
		wg        sync.WaitGroup
		stopCh    *cos.StopCh
	}
)

// interface guard
var _ cos.Runner = (*Runtime)(nil)

func New(prefixMatch bool) *Runtime {
	conf := cmn.GCO.Get()
	r := &Runtime{
		cache:  NewModCache(conf.Cache.Root, conf.Cache.Enabled),
		router: NewRouter(prefixMatch),
		bridge: transport.NewBridge(0),
		guests: make(map[cos.Identifier]*Artifact),
		stopCh: cos.NewStopCh(),
	}
	r.acceptors = []transport.Acceptor{r.bridge}
	return r
}

func (*Runtime) Name() string { return "runtime" }

// Bridge returns the in-memory front door for same-process callers.
func (r *Runtime) Bridge() *transport.Bridge { return r.bridge }

func (r *Runtime) Cache() *ModCache { return r.cache }

// AddAcceptor attaches an additional front door (e.g. a TCP listener);
// call before Run.
func (r *Runtime) AddAcceptor(a transport.Acceptor) { r.acceptors = append(r.acceptors, a) }

// Welcome registers a byte-backed guest under a fresh random identifier.
func (r *Runtime) Welcome(code []byte) (cos.Identifier, error) {
	artifact, err := r.cache.LoadBytes(code)
	return r.welcome(cos.NewIdentifier(), artifact, err)
}

// WelcomeNamed registers a guest under the identifier derived from its URL.
func (r *Runtime) WelcomeNamed(url string, code []byte) (cos.Identifier, error) {
	artifact, err := r.cache.LoadBytes(code)
	return r.welcome(cos.NamedIdentifier(url), artifact, err)
}

// WelcomeFile registers a file-backed guest under its path-derived identifier.
func (r *Runtime) WelcomeFile(path string) (cos.Identifier, error) {
	artifact, err := r.cache.Load(path)
	return r.welcome(cos.NamedIdentifier(path), artifact, err)
}

func (r *Runtime) welcome(id cos.Identifier, artifact *Artifact, err error) (cos.Identifier, error) {
	if err != nil {
		return cos.Identifier{}, err
	}
	r.gmu.Lock()
	r.guests[id] = artifact
	r.gmu.Unlock()
	nlog.Infof("welcomed guest %s (digest %.8s)", id.Short(), artifact.Digest())
	return id, nil
}

// Resolve returns the artifact bound to an identifier, or nil.
func (r *Runtime) Resolve(id cos.Identifier) *Artifact {
	r.gmu.RLock()
	defer r.gmu.RUnlock()
	return r.guests[id]
}

// Define binds (method, uri) to a registered guest; returns the previous
// binding, if any.
func (r *Runtime) Define(m wire.Method, uri string, id cos.Identifier) (cos.Identifier, bool) {
	return r.router.Define(m, uri, id)
}

// Run accepts inbound primary streams and dispatches each on its own task.
func (r *Runtime) Run() error {
	for _, a := range r.acceptors {
		r.wg.Add(1)
		go func(a transport.Acceptor) {
			defer r.wg.Done()
			for {
				msg, ok := a.Accept()
				if !ok {
					return
				}
				r.wg.Add(1)
				go func() {
					defer r.wg.Done()
					r.dispatch(msg)
				}()
			}
		}(a)
	}
	<-r.stopCh.Listen()
	return nil
}

func (r *Runtime) Stop(err error) {
	nlog.Infof("stopping runtime, err: %v", err)
	for _, a := range r.acceptors {
		a.Close()
	}
	r.stopCh.Close()
	r.wg.Wait()
}

// Execute is the in-process client: it dials the bridge, sends the request,
// and blocks for the response. The response body remains a stream; the
// caller drains it.
func (r *Runtime) Execute(req *wire.Request) (*wire.Response, error) {
	return ExecuteOn(r.bridge.Dial(), req)
}

// ExecuteTo bypasses routing and addresses a guest identifier directly.
func (r *Runtime) ExecuteTo(id cos.Identifier, req *wire.Request) (*wire.Response, error) {
	return ExecuteOn(r.bridge.DialTo(id), req)
}

// ExecuteOn drives one request/response cycle over an already dialed stream.
func ExecuteOn(caller *transport.Stream, req *wire.Request) (*wire.Response, error) {
	go func() {
		// a failed invocation may close the peer mid-request; the response
		// (or EOF) below is authoritative either way
		if err := req.Write(caller); err != nil && nlog.Verbose() {
			nlog.Warningf("request aborted: %v", err)
		}
		caller.CloseWrite()
	}()
	return wire.ReadResponse(caller, cmn.GCO.Get().Stream.MaxHdrSize)
}
