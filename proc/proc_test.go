package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biscuit/defs"
	"biscuit/mem"
)

func newTestCpu() *Cpu { return NewCpu() }

func TestTable_AllocAssignsIncreasingPidsAndDefaults(t *testing.T) {
	table := NewTable()
	cpu := newTestCpu()
	alloc := mem.NewAllocator(8, 4096)

	p1, err := table.Alloc(cpu, alloc, "init")
	require.Equal(t, defs.Err_t(0), err)
	p2, err := table.Alloc(cpu, alloc, "shell")
	require.Equal(t, defs.Err_t(0), err)

	assert.NotEqual(t, p1.Pid, p2.Pid)
	assert.Equal(t, Used, p1.State)
	assert.Equal(t, PrioDflt, p1.Priority)
	assert.Equal(t, "init", p1.Name)
	assert.Equal(t, "shell", p2.Name)
}

func TestTable_AllocTruncatesLongNames(t *testing.T) {
	table := NewTable()
	cpu := newTestCpu()
	alloc := mem.NewAllocator(8, 4096)

	long := "a-very-long-process-name-that-exceeds-the-limit"
	p, err := table.Alloc(cpu, alloc, long)
	require.Equal(t, defs.Err_t(0), err)
	assert.LessOrEqual(t, len(p.Name), MaxName)
	assert.Equal(t, long[:MaxName], p.Name)
}

func TestTable_AllocExhaustionReturnsENFILE(t *testing.T) {
	table := NewTable()
	cpu := newTestCpu()
	alloc := mem.NewAllocator(NProc+4, 4096)

	for i := 0; i < NProc; i++ {
		_, err := table.Alloc(cpu, alloc, "p")
		require.Equal(t, defs.Err_t(0), err)
	}
	_, err := table.Alloc(cpu, alloc, "overflow")
	assert.Equal(t, defs.ENFILE, err)
}

func TestTable_AllocFailsWhenFrameAllocatorExhausted(t *testing.T) {
	table := NewTable()
	cpu := newTestCpu()
	alloc := mem.NewAllocator(0, 4096)

	_, err := table.Alloc(cpu, alloc, "p")
	assert.Equal(t, defs.ENOMEM, err)
}

func TestTable_AllocReusesFreedSlotAndResetsFields(t *testing.T) {
	table := NewTable()
	cpu := newTestCpu()
	alloc := mem.NewAllocator(8, 4096)

	p, _ := table.Alloc(cpu, alloc, "first")
	p.Lock.Acquire(cpu.Cpu)
	p.State = Zombie
	p.Lock.Release(cpu.Cpu)
	freeProc(p, alloc)
	assert.Equal(t, Unused, p.State)

	p2, err := table.Alloc(cpu, alloc, "second")
	require.Equal(t, defs.Err_t(0), err)
	assert.Same(t, p, p2, "the freed slot should be reused by the next allocation")
	assert.Equal(t, "second", p2.Name)
	assert.Equal(t, 0, p2.Xstate)
}
