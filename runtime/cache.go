// Package runtime hosts sandboxed guest modules behind a request/response boundary
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"encoding/binary"
	"encoding/hex"
	"os"
	"strings"
	"sync"

	"github.com/NVIDIA/wasmgate/cmn"
	"github.com/NVIDIA/wasmgate/cmn/cos"
	"github.com/NVIDIA/wasmgate/cmn/nlog"
	wasmtime "github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/singleflight"
)

type (
	// Artifact is a parsed, validated guest module ready to be instantiated
	// quickly. Identity is its content digest.
	Artifact struct {
		module *wasmtime.Module
		digest string
		path   string // empty for byte-backed artifacts
	}

	// ModCache maps guest-module bytes to artifacts. Two keyspaces coexist:
	// filesystem path (for scans) and content digest (for deduplication);
	// every entry carries its digest either way.
	ModCache struct {
		paths   map[string]*Artifact
		digests map[string]*Artifact
		flight  singleflight.Group
		mu      sync.RWMutex
		root    string
		enabled bool
	}
)

func NewModCache(root string, enabled bool) *ModCache {
	return &ModCache{
		paths:   make(map[string]*Artifact),
		digests: make(map[string]*Artifact),
		root:    root,
		enabled: enabled,
	}
}

func (a *Artifact) Digest() string           { return a.digest }
func (a *Artifact) Equal(b *Artifact) bool   { return b != nil && a.digest == b.digest }
func (a *Artifact) Module() *wasmtime.Module { return a.module }

// Digest is SHA-3-256 over the big-endian length of the code followed by the
// code itself, hex-encoded. Stable across runs for the same bytes.
func Digest(code []byte) string {
	h := sha3.New256()
	var l [8]byte
	binary.BigEndian.PutUint64(l[:], uint64(len(code)))
	h.Write(l[:])
	h.Write(code)
	return hex.EncodeToString(h.Sum(nil))
}

// Load returns the artifact for a module file, compiling at most once per key
// regardless of concurrent callers. With caching disabled every call
// recompiles.
func (c *ModCache) Load(path string) (*Artifact, error) {
	if !c.enabled {
		return compileFile(path)
	}
	c.mu.RLock()
	a, ok := c.paths[path]
	c.mu.RUnlock()
	if ok {
		return a, nil
	}
	v, err, _ := c.flight.Do("path:"+path, func() (any, error) {
		a, err := compileFile(path)
		if err != nil {
			return nil, err
		}
		c.insert(a)
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Artifact), nil
}

// LoadBytes is the digest-keyed variant for byte-backed modules.
func (c *ModCache) LoadBytes(code []byte) (*Artifact, error) {
	digest := Digest(code)
	if !c.enabled {
		return compile(code, digest, "")
	}
	c.mu.RLock()
	a, ok := c.digests[digest]
	c.mu.RUnlock()
	if ok {
		return a, nil
	}
	v, err, _ := c.flight.Do("digest:"+digest, func() (any, error) {
		a, err := compile(code, digest, "")
		if err != nil {
			return nil, err
		}
		c.insert(a)
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Artifact), nil
}

func (c *ModCache) insert(a *Artifact) {
	c.mu.Lock()
	if a.path != "" {
		c.paths[a.path] = a
	}
	c.digests[a.digest] = a
	c.mu.Unlock()
}

// Scan walks the module root recursively, loads every file carrying the
// guest-module extension, and purges path-keyed entries whose backing file
// disappeared.
func (c *ModCache) Scan() error {
	if c.root == "" {
		return nil
	}
	seen := make(map[string]struct{})
	err := godirwalk.Walk(c.root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() || !strings.HasSuffix(path, cmn.ModuleExt) {
				return nil
			}
			seen[path] = struct{}{}
			if _, err := c.Load(path); err != nil {
				nlog.Warningf("scan: failed to load %q: %v", path, err)
			}
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to scan %q", c.root)
	}
	c.purge(seen)
	return nil
}

func (c *ModCache) purge(seen map[string]struct{}) {
	c.mu.Lock()
	for path, a := range c.paths {
		if _, ok := seen[path]; !ok {
			delete(c.paths, path)
			delete(c.digests, a.digest)
		}
	}
	c.mu.Unlock()
}

// Paths lists the file-backed entries currently cached.
func (c *ModCache) Paths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	paths := make([]string, 0, len(c.paths))
	for path := range c.paths {
		paths = append(paths, path)
	}
	return paths
}

// Clear drops all entries; they are cheap to rebuild.
func (c *ModCache) Clear() {
	c.mu.Lock()
	clear(c.paths)
	clear(c.digests)
	c.mu.Unlock()
}

//
// compilation
//

func compileFile(path string) (*Artifact, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, cos.NewErrNotFound("module %q", path)
	}
	return compile(code, Digest(code), path)
}

func compile(code []byte, digest, path string) (*Artifact, error) {
	module, err := wasmtime.NewModule(Engine(), code)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile module")
	}
	if err := validate(module); err != nil {
		return nil, err
	}
	return &Artifact{module: module, digest: digest, path: path}, nil
}

// validate checks the guest contract: one exported linear memory named
// "memory" and at least one recognized entrypoint.
func validate(module *wasmtime.Module) error {
	var memory, entry bool
	for _, exp := range module.Exports() {
		switch exp.Name() {
		case abiMemory:
			memory = exp.Type().MemoryType() != nil
		case abiMain, abiStart:
			entry = entry || exp.Type().FuncType() != nil
		}
	}
	if !memory {
		return cos.NewErrInvalidData("module does not export %q", abiMemory)
	}
	if !entry {
		return cos.NewErrInvalidData("module exports neither %q nor %q", abiMain, abiStart)
	}
	return nil
}
