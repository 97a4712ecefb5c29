// Package runtime hosts sandboxed guest modules behind a request/response boundary
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package runtime_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/NVIDIA/wasmgate/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestStable(t *testing.T) {
	code := wat2wasm(t, staticGuest)
	first := runtime.Digest(code)
	second := runtime.Digest(code)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // sha3-256, hex

	other := runtime.Digest(wat2wasm(t, pongGuest))
	assert.NotEqual(t, first, other)
}

func TestCacheLoadIdentity(t *testing.T) {
	cache := runtime.NewModCache("", true)
	code := wat2wasm(t, staticGuest)

	first, err := cache.LoadBytes(code)
	require.NoError(t, err)
	second, err := cache.LoadBytes(code)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
	assert.Same(t, first, second)
}

func TestCacheDisabledRecompiles(t *testing.T) {
	cache := runtime.NewModCache("", false)
	code := wat2wasm(t, staticGuest)

	first, err := cache.LoadBytes(code)
	require.NoError(t, err)
	second, err := cache.LoadBytes(code)
	require.NoError(t, err)
	// distinct artifacts, same identity
	assert.NotSame(t, first, second)
	assert.True(t, first.Equal(second))
}

func TestCacheConcurrentLoadsSingleFill(t *testing.T) {
	cache := runtime.NewModCache("", true)
	code := wat2wasm(t, echoGuest)

	const loaders = 16
	var (
		wg  sync.WaitGroup
		got [loaders]*runtime.Artifact
	)
	for i := 0; i < loaders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := cache.LoadBytes(code)
			if err != nil {
				t.Error(err)
				return
			}
			got[i] = a
		}(i)
	}
	wg.Wait()
	for i := 1; i < loaders; i++ {
		assert.Same(t, got[0], got[i])
	}
}

func TestCacheScanAndPurge(t *testing.T) {
	var (
		root = t.TempDir()
		a    = filepath.Join(root, "static.wcgi")
		b    = filepath.Join(root, "nested", "pong.wcgi")
	)
	require.NoError(t, os.WriteFile(a, wat2wasm(t, staticGuest), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(b), 0o755))
	require.NoError(t, os.WriteFile(b, wat2wasm(t, pongGuest), 0o644))
	// an unrelated file is skipped
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), []byte("not a module"), 0o644))

	cache := runtime.NewModCache(root, true)
	require.NoError(t, cache.Scan())
	assert.ElementsMatch(t, []string{a, b}, cache.Paths())

	// entries whose backing path disappears are purged on the next scan
	require.NoError(t, os.Remove(b))
	require.NoError(t, cache.Scan())
	assert.ElementsMatch(t, []string{a}, cache.Paths())
}

func TestCacheRejectsContractViolations(t *testing.T) {
	cache := runtime.NewModCache("", true)

	// no exported memory
	_, err := cache.LoadBytes(wat2wasm(t, `
(module
  (func (export "main") (param i32 i32) (result i32) (i32.const 0)))
`))
	assert.Error(t, err)

	// no entrypoint
	_, err = cache.LoadBytes(wat2wasm(t, `
(module (memory (export "memory") 1))
`))
	assert.Error(t, err)
}

func TestCacheLoadMissingFile(t *testing.T) {
	cache := runtime.NewModCache("", true)
	_, err := cache.Load(filepath.Join(t.TempDir(), "absent.wcgi"))
	assert.Error(t, err)
}
