package ksync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpinlock_AcquireRelease(t *testing.T) {
	l := NewSpinlock("test")
	c := &Cpu{}

	l.Acquire(c)
	assert.True(t, l.Holding(c))
	assert.Equal(t, 1, c.Noff)

	l.Release(c)
	assert.False(t, l.Holding(c))
	assert.Equal(t, 0, c.Noff)
}

func TestSpinlock_NestedAcquireTracksNoff(t *testing.T) {
	a := NewSpinlock("a")
	b := NewSpinlock("b")
	c := &Cpu{}

	a.Acquire(c)
	b.Acquire(c)
	require.Equal(t, 2, c.Noff)

	b.Release(c)
	assert.Equal(t, 1, c.Noff)
	a.Release(c)
	assert.Equal(t, 0, c.Noff)
}

func TestSpinlock_ReacquireOnSameCpuPanics(t *testing.T) {
	l := NewSpinlock("test")
	c := &Cpu{}
	l.Acquire(c)

	assert.Panics(t, func() { l.Acquire(c) })
}

func TestSpinlock_ReleaseByNonHolderPanics(t *testing.T) {
	l := NewSpinlock("test")
	owner := &Cpu{}
	other := &Cpu{}
	l.Acquire(owner)

	assert.Panics(t, func() { l.Release(other) })
}

func TestSpinlock_NameIsPreserved(t *testing.T) {
	l := NewSpinlock("itable")
	assert.Equal(t, "itable", l.Name())
}
