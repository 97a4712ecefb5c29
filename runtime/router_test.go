// Package runtime hosts sandboxed guest modules behind a request/response boundary
/*
 * Copyright (c) 2025, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"testing"

	"github.com/NVIDIA/wasmgate/cmn/cos"
	"github.com/NVIDIA/wasmgate/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterDefineRoute(t *testing.T) {
	var (
		router = NewRouter(false)
		first  = cos.NewIdentifier()
		second = cos.NewIdentifier()
	)
	_, existed := router.Define(wire.MethodGet, "/echo", first)
	assert.False(t, existed)

	id, ok := router.Route(wire.MethodGet, "/echo")
	require.True(t, ok)
	assert.Equal(t, first, id)

	// redefinition returns the previous binding; route returns the latest
	prev, existed := router.Define(wire.MethodGet, "/echo", second)
	require.True(t, existed)
	assert.Equal(t, first, prev)

	id, ok = router.Route(wire.MethodGet, "/echo")
	require.True(t, ok)
	assert.Equal(t, second, id)
}

func TestRouterMethodDistinct(t *testing.T) {
	var (
		router = NewRouter(false)
		getID  = cos.NewIdentifier()
		postID = cos.NewIdentifier()
	)
	router.Define(wire.MethodGet, "/x", getID)
	router.Define(wire.MethodPost, "/x", postID)

	id, ok := router.Route(wire.MethodGet, "/x")
	require.True(t, ok)
	assert.Equal(t, getID, id)

	id, ok = router.Route(wire.MethodPost, "/x")
	require.True(t, ok)
	assert.Equal(t, postID, id)

	_, ok = router.Route(wire.MethodDelete, "/x")
	assert.False(t, ok)
}

func TestRouterMiss(t *testing.T) {
	router := NewRouter(false)
	_, ok := router.Route(wire.MethodGet, "/nowhere")
	assert.False(t, ok)
}

func TestRouterPrefixLongestWins(t *testing.T) {
	var (
		router = NewRouter(true)
		api    = cos.NewIdentifier()
		apiV2  = cos.NewIdentifier()
	)
	router.Define(wire.MethodGet, "/api/", api)
	router.Define(wire.MethodGet, "/api/v2/", apiV2)

	id, ok := router.Route(wire.MethodGet, "/api/v2/users")
	require.True(t, ok)
	assert.Equal(t, apiV2, id)

	id, ok = router.Route(wire.MethodGet, "/api/v1/users")
	require.True(t, ok)
	assert.Equal(t, api, id)

	_, ok = router.Route(wire.MethodGet, "/static")
	assert.False(t, ok)
}

func TestRouterPrefixDisabledByDefault(t *testing.T) {
	router := NewRouter(false)
	router.Define(wire.MethodGet, "/api/", cos.NewIdentifier())
	_, ok := router.Route(wire.MethodGet, "/api/users")
	assert.False(t, ok)
}
