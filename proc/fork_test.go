package proc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biscuit/blockdev"
	"biscuit/defs"
	"biscuit/fs"
	"biscuit/mem"
)

type fakeEnqueuer struct {
	enqueued []*Proc
	dequeued []*Proc
}

func (e *fakeEnqueuer) Enqueue(p *Proc) { e.enqueued = append(e.enqueued, p) }
func (e *fakeEnqueuer) Dequeue(p *Proc) { e.dequeued = append(e.dequeued, p) }

func newTestFS(t *testing.T) *fs.FS {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fs.img")
	dev, err := blockdev.CreateImage(path, 2048)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	f, ferr := fs.Format(dev, defs.DevDisk0, 2048, 64, 64, 32)
	require.Equal(t, defs.Err_t(0), ferr)
	return f
}

func TestFork_ChildGetsIndependentAddressSpaceAndCopiedMemory(t *testing.T) {
	table := NewTable()
	cpu := newTestCpu()
	alloc := mem.NewAllocator(32, 4096)
	fsys := newTestFS(t)

	parent, _ := table.Alloc(cpu, alloc, "parent")
	require.Equal(t, defs.Err_t(0), Grow(parent, alloc, 4096, true))
	parent.Mem[0] = 0x99

	eq := &fakeEnqueuer{}
	child, err := Fork(cpu, table, alloc, fsys, parent, eq)
	require.Equal(t, defs.Err_t(0), err)

	assert.NotEqual(t, parent.Pid, child.Pid)
	assert.Equal(t, parent.Sz, child.Sz)
	assert.Equal(t, byte(0x99), child.Mem[0])

	child.Mem[0] = 0x11
	assert.Equal(t, byte(0x99), parent.Mem[0], "fork must deep-copy Mem, not alias the parent's slice")

	assert.Equal(t, Runnable, child.State)
	assert.Equal(t, parent.Priority, child.Priority)
	assert.Equal(t, parent, child.Parent)
	assert.Contains(t, eq.enqueued, child)
}

func TestFork_ChildTrapframeReturnsZeroNotParents(t *testing.T) {
	table := NewTable()
	cpu := newTestCpu()
	alloc := mem.NewAllocator(32, 4096)
	fsys := newTestFS(t)

	parent, _ := table.Alloc(cpu, alloc, "parent")
	parent.Trapframe.SetReturn(42)
	parent.Trapframe.Args[1] = 7

	child, err := Fork(cpu, table, alloc, fsys, parent, nil)
	require.Equal(t, defs.Err_t(0), err)

	assert.Equal(t, int64(0), child.Trapframe.ArgLong(0), "child's a0 must read as 0, not the parent's return value")
	assert.Equal(t, uint64(7), child.Trapframe.Args[1], "non-return trapframe fields are copied verbatim")
}

func TestFork_ChildDuplicatesOpenFilesAndCwd(t *testing.T) {
	table := NewTable()
	cpu := newTestCpu()
	alloc := mem.NewAllocator(32, 4096)
	fsys := newTestFS(t)

	parent, _ := table.Alloc(cpu, alloc, "parent")
	root := fsys.Get(fs.RootIno)
	parent.Cwd = root

	fsys.Log.BeginOp()
	ip, aerr := fsys.Alloc(defs.ItypeFile)
	require.Equal(t, defs.Err_t(0), aerr)
	fsys.Log.EndOp()
	parent.Ofile[3] = fs.NewInodeFile(fsys, ip, true, true)

	child, err := Fork(cpu, table, alloc, fsys, parent, nil)
	require.Equal(t, defs.Err_t(0), err)

	require.NotNil(t, child.Cwd)
	assert.Equal(t, parent.Cwd.Inum(), child.Cwd.Inum())
	require.NotNil(t, child.Ofile[3])
	assert.Same(t, parent.Ofile[3], child.Ofile[3], "Dup must return the same File handle, sharing its offset")
}
