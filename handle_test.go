package asx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestArena_AllocateResolveRelease covers the basic allocate/resolve/release
// cycle and confirms a released handle is immediately stale (§8 property #1).
func TestArena_AllocateResolveRelease(t *testing.T) {
	a := newArena[int](tagTask, 4)

	h, slot, err := a.allocate("test")
	require.Nil(t, err)
	*slot = 42

	got, err := a.resolve("test", h)
	require.Nil(t, err)
	assert.Equal(t, 42, *got)

	require.Nil(t, a.release("test", h))

	_, err = a.resolve("test", h)
	require.NotNil(t, err)
	assert.Equal(t, StaleHandle, err.Code)
}

// TestArena_ReuseBumpsGeneration confirms that reallocating a freed slot
// bumps its generation, so every handle ever returned stays distinguishable
// from its slot's next occupant.
func TestArena_ReuseBumpsGeneration(t *testing.T) {
	a := newArena[int](tagTask, 1)

	h1, _, err := a.allocate("test")
	require.Nil(t, err)
	require.Nil(t, a.release("test", h1))

	h2, _, err := a.allocate("test")
	require.Nil(t, err)

	assert.NotEqual(t, h1, h2)
	_, err = a.resolve("test", h1)
	require.NotNil(t, err)
	assert.Equal(t, StaleHandle, err.Code)

	_, err = a.resolve("test", h2)
	assert.Nil(t, err)
}

// TestArena_ResourceExhausted confirms allocation beyond capacity fails
// atomically, with the arena left exactly at capacity (no partial mutation).
func TestArena_ResourceExhausted(t *testing.T) {
	a := newArena[int](tagTask, 2)

	_, _, err := a.allocate("test")
	require.Nil(t, err)
	_, _, err = a.allocate("test")
	require.Nil(t, err)

	_, _, err = a.allocate("test")
	require.NotNil(t, err)
	assert.Equal(t, ResourceExhausted, err.Code)
	assert.Equal(t, 2, a.inUse())
}

// TestHandle_TypeMismatchRejected confirms resolve rejects a handle
// presented against the wrong arena's tag with INVALID_ARGUMENT, never
// silently reinterpreting cross-type bits.
func TestHandle_TypeMismatchRejected(t *testing.T) {
	regions := newArena[int](tagRegion, 1)
	tasks := newArena[int](tagTask, 1)

	h, _, err := regions.allocate("test")
	require.Nil(t, err)

	_, terr := tasks.resolve("test", h)
	require.NotNil(t, terr)
	assert.Equal(t, InvalidArgument, terr.Code)
}

// TestHandle_NilHandleRejected confirms the zero Handle never resolves.
func TestHandle_NilHandleRejected(t *testing.T) {
	a := newArena[int](tagTask, 1)
	_, err := a.resolve("test", NilHandle)
	require.NotNil(t, err)
	assert.Equal(t, InvalidArgument, err.Code)
}
