package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForkAddressSpace_SharesAndDowngrades(t *testing.T) {
	a := NewAllocator(4, 8)
	f, ok := a.Alloc()
	require.True(t, ok)

	parent := NewSimAddressSpace()
	child := NewSimAddressSpace()
	parent.Map(0x1000, f, true)

	ForkAddressSpace(a, parent, child)

	assert.Equal(t, 2, a.Refcount(f))

	ppte, ok := parent.Lookup(0x1000)
	require.True(t, ok)
	assert.True(t, ppte.COW)
	assert.False(t, ppte.Writable)

	cpte, ok := child.Lookup(0x1000)
	require.True(t, ok)
	assert.True(t, cpte.COW)
	assert.Equal(t, f, cpte.Frame)
}

func TestHandleWriteFault_LastRefUpgradesInPlace(t *testing.T) {
	a := NewAllocator(2, 8)
	f, _ := a.Alloc()
	as := NewSimAddressSpace()
	as.MarkCOW(0x1000, f)

	err := HandleWriteFault(a, as, 0x1000)
	require.NoError(t, err)

	pte, ok := as.Lookup(0x1000)
	require.True(t, ok)
	assert.True(t, pte.Writable)
	assert.False(t, pte.COW)
	assert.Equal(t, f, pte.Frame)
	assert.Equal(t, 1, a.Refcount(f))
}

func TestHandleWriteFault_SharedFrameClonesAndDropsShare(t *testing.T) {
	a := NewAllocator(4, 8)
	f, _ := a.Alloc()
	a.Bytes(f)[0] = 0x42

	parent := NewSimAddressSpace()
	child := NewSimAddressSpace()
	parent.Map(0x2000, f, true)
	ForkAddressSpace(a, parent, child)
	require.Equal(t, 2, a.Refcount(f))

	err := HandleWriteFault(a, child, 0x2000)
	require.NoError(t, err)

	cpte, ok := child.Lookup(0x2000)
	require.True(t, ok)
	assert.NotEqual(t, f, cpte.Frame)
	assert.True(t, cpte.Writable)
	assert.False(t, cpte.COW)
	assert.Equal(t, byte(0x42), a.Bytes(cpte.Frame)[0], "clone must copy the shared frame's content")

	// Parent's mapping is untouched: still COW, still pointing at f, whose
	// refcount dropped back to one now that the child cloned away.
	ppte, ok := parent.Lookup(0x2000)
	require.True(t, ok)
	assert.Equal(t, f, ppte.Frame)
	assert.True(t, ppte.COW)
	assert.Equal(t, 1, a.Refcount(f))
}

func TestHandleWriteFault_NonCOWMappingIsFatalToCaller(t *testing.T) {
	a := NewAllocator(1, 8)
	f, _ := a.Alloc()
	as := NewSimAddressSpace()
	as.Map(0x3000, f, true)

	err := HandleWriteFault(a, as, 0x3000)
	assert.Error(t, err)
}

func TestHandleWriteFault_UnmappedIsError(t *testing.T) {
	a := NewAllocator(1, 8)
	as := NewSimAddressSpace()

	err := HandleWriteFault(a, as, 0x4000)
	assert.Error(t, err)
}
