package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocator_AllocFreeRoundTrip(t *testing.T) {
	a := NewAllocator(4, 16)

	f, ok := a.Alloc()
	require.True(t, ok)
	assert.Equal(t, 1, a.Refcount(f))

	free, total := a.Stats()
	assert.Equal(t, 3, free)
	assert.Equal(t, 4, total)

	a.Free(f)
	free, total = a.Stats()
	assert.Equal(t, 4, free)
	assert.Equal(t, 4, total)
}

func TestAllocator_AllocPoisonsContent(t *testing.T) {
	a := NewAllocator(1, 8)
	f, ok := a.Alloc()
	require.True(t, ok)

	for _, b := range a.Bytes(f) {
		assert.Equal(t, byte(poisonByte), b)
	}
}

func TestAllocator_ExhaustionReportsNotOK(t *testing.T) {
	a := NewAllocator(2, 8)
	_, ok1 := a.Alloc()
	_, ok2 := a.Alloc()
	_, ok3 := a.Alloc()

	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.False(t, ok3)
}

func TestAllocator_DoubleFreePanics(t *testing.T) {
	a := NewAllocator(1, 8)
	f, _ := a.Alloc()
	a.Free(f)

	assert.Panics(t, func() { a.Free(f) })
}

func TestAllocator_FreeOutOfRangePanics(t *testing.T) {
	a := NewAllocator(1, 8)
	assert.Panics(t, func() { a.Free(Frame(99)) })
}

func TestAllocator_IncrefDecrefSharing(t *testing.T) {
	a := NewAllocator(1, 8)
	f, _ := a.Alloc()

	a.Incref(f)
	assert.Equal(t, 2, a.Refcount(f))

	freed := a.Decref(f)
	assert.False(t, freed)
	assert.Equal(t, 1, a.Refcount(f))

	freed = a.Decref(f)
	assert.True(t, freed)

	_, total := a.Stats()
	assert.Equal(t, 1, total)
	free, _ := a.Stats()
	assert.Equal(t, 1, free)
}

func TestAllocator_DecrefUnderflowPanics(t *testing.T) {
	a := NewAllocator(1, 8)
	f, _ := a.Alloc()
	a.Decref(f)

	assert.Panics(t, func() { a.Decref(f) })
}

func TestAllocator_IncrefOfFreeFramePanics(t *testing.T) {
	a := NewAllocator(1, 8)
	f, _ := a.Alloc()
	a.Free(f)

	assert.Panics(t, func() { a.Incref(f) })
}

// TestAllocator_FrameConservation exercises spec §8's conservation
// invariant directly: free frames plus the sum of every live refcount
// always equals the total frame count.
func TestAllocator_FrameConservation(t *testing.T) {
	a := NewAllocator(8, 8)
	var held []Frame
	for i := 0; i < 5; i++ {
		f, ok := a.Alloc()
		require.True(t, ok)
		held = append(held, f)
	}
	a.Incref(held[0])
	a.Incref(held[0])

	free, total := a.Stats()
	assert.Equal(t, free+a.LiveRefSum(), total)

	a.Decref(held[0])
	a.Decref(held[0])
	a.Decref(held[0])
	for _, f := range held[1:] {
		a.Free(f)
	}

	free, total = a.Stats()
	assert.Equal(t, total, free)
	assert.Equal(t, 0, a.LiveRefSum())
}
