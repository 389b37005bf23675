package proc

import (
	"biscuit/defs"
	"biscuit/fs"
	"biscuit/mem"
)

// Fork implements spec §4.7's fork: allocate a PCB slot, duplicate the
// parent's address space via COW, duplicate open files and the cwd
// reference, copy the trap frame with a zeroed child return value,
// establish the parent pointer under the table's WaitLock, and enqueue the
// child as runnable. The child inherits the parent's priority and MLFQ
// level, so an MLFQ Enqueuer admits it at the parent's level. The
// priority-selector voluntary-yield rule is the caller's responsibility —
// proc does not know which selector is active
// (that lives in the sched package, which imports proc, not the reverse).
func Fork(cpu *Cpu, table *Table, alloc *mem.Allocator, fsys *fs.FS, parent *Proc, eq Enqueuer) (*Proc, defs.Err_t) {
	child, err := table.Alloc(cpu, alloc, parent.Name)
	if err != 0 {
		return nil, err
	}

	mem.ForkAddressSpace(alloc, parent.AS, child.AS)
	child.Sz = parent.Sz
	child.Mem = make([]byte, len(parent.Mem))
	copy(child.Mem, parent.Mem)

	for i, f := range parent.Ofile {
		if f != nil {
			child.Ofile[i] = f.Dup()
		}
	}

	if parent.Cwd != nil {
		child.Cwd = fsys.Get(parent.Cwd.Inum())
	}

	*child.Trapframe = *parent.Trapframe
	child.Trapframe.SetReturn(0)

	table.WaitLock.Acquire(cpu.Cpu)
	child.Parent = parent
	table.WaitLock.Release(cpu.Cpu)

	child.Lock.Acquire(cpu.Cpu)
	child.Priority = parent.Priority
	child.MlfqLevel = parent.MlfqLevel
	child.TimeQuantum = 1 << uint(child.MlfqLevel)
	child.State = Runnable
	child.Lock.Release(cpu.Cpu)

	if eq != nil {
		eq.Enqueue(child)
	}
	return child, 0
}
