// Package runtime hosts sandboxed guest modules behind a request/response boundary
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"strings"
	"sync"

	"github.com/NVIDIA/wasmgate/cmn/cos"
	"github.com/NVIDIA/wasmgate/wire"
	"github.com/OneOfOne/xxhash"
)

type (
	routeEnt struct {
		uri    string
		id     cos.Identifier
		method wire.Method
	}

	// Router maps (method, URI) to a guest identifier. Exact match by
	// default; prefix match behind an explicit flag, longest prefix wins.
	// The router holds no strong references to guests - identifiers are
	// resolved via the runtime.
	Router struct {
		exact    map[uint64][]routeEnt // hash bucket -> verified entries
		prefixes []routeEnt            // sorted by descending URI length
		mu       sync.RWMutex
		prefixOn bool
	}
)

func NewRouter(prefixMatch bool) *Router {
	return &Router{exact: make(map[uint64][]routeEnt), prefixOn: prefixMatch}
}

func routeKey(m wire.Method, uri string) uint64 {
	h := xxhash.New64()
	h.Write([]byte{byte(m)})
	h.WriteString(uri)
	return h.Sum64()
}

// Define inserts or replaces a route and returns the previously bound
// identifier, if any.
func (r *Router) Define(m wire.Method, uri string, id cos.Identifier) (prev cos.Identifier, existed bool) {
	key := routeKey(m, uri)
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket := r.exact[key]
	for i := range bucket {
		if bucket[i].method == m && bucket[i].uri == uri {
			prev, existed = bucket[i].id, true
			bucket[i].id = id
			if r.prefixOn {
				r.definePrefix(m, uri, id)
			}
			return
		}
	}
	r.exact[key] = append(bucket, routeEnt{method: m, uri: uri, id: id})
	if r.prefixOn {
		r.definePrefix(m, uri, id)
	}
	return
}

func (r *Router) definePrefix(m wire.Method, uri string, id cos.Identifier) {
	for i := range r.prefixes {
		if r.prefixes[i].method == m && r.prefixes[i].uri == uri {
			r.prefixes[i].id = id
			return
		}
	}
	// keep sorted longest-first so that lookups take the first hit
	at := len(r.prefixes)
	for i := range r.prefixes {
		if len(uri) > len(r.prefixes[i].uri) {
			at = i
			break
		}
	}
	r.prefixes = append(r.prefixes, routeEnt{})
	copy(r.prefixes[at+1:], r.prefixes[at:])
	r.prefixes[at] = routeEnt{method: m, uri: uri, id: id}
}

// Route performs the lookup.
func (r *Router) Route(m wire.Method, uri string) (cos.Identifier, bool) {
	key := routeKey(m, uri)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ent := range r.exact[key] {
		if ent.method == m && ent.uri == uri {
			return ent.id, true
		}
	}
	if r.prefixOn {
		for _, ent := range r.prefixes {
			if ent.method == m && strings.HasPrefix(uri, ent.uri) {
				return ent.id, true
			}
		}
	}
	return cos.Identifier{}, false
}
