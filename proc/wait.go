package proc

import (
	"biscuit/defs"
	"biscuit/ksync"
	"biscuit/mem"
)

// Wait implements spec §4.7's wait: under the table's WaitLock, scan for a
// zombie child, reclaim it and return its pid and exit status; if there is
// no child or the caller was killed, fail with ECHILD; otherwise sleep on
// the caller itself as channel (Exit wakes the parent through that same
// channel) and retry on wake.
func Wait(cpu *Cpu, table *Table, alloc *mem.Allocator, parent *Proc) (pid int, xstate int, err defs.Err_t) {
	table.WaitLock.Acquire(cpu.Cpu)
	for {
		haveKids := false
		for _, c := range table.procs {
			if c.Parent != parent {
				continue
			}
			haveKids = true
			c.Lock.Acquire(cpu.Cpu)
			if c.State == Zombie {
				rpid := c.Pid
				rxstate := c.Xstate
				freeProc(c, alloc)
				c.Lock.Release(cpu.Cpu)
				table.WaitLock.Release(cpu.Cpu)
				return rpid, rxstate, 0
			}
			c.Lock.Release(cpu.Cpu)
		}
		if !haveKids || parent.Killed {
			table.WaitLock.Release(cpu.Cpu)
			return 0, 0, defs.ECHILD
		}
		ksync.Sleep(parent, spinLocker{table.WaitLock, cpu})
	}
}

// freeProc resets a reaped zombie's slot to Unused, releasing its kernel
// stack frame back to the allocator. Caller holds both the table's
// WaitLock and the child's own Lock.
func freeProc(c *Proc, alloc *mem.Allocator) {
	alloc.Free(mem.Frame(c.KStack >> 12))
	c.State = Unused
	c.Pid = 0
	c.Parent = nil
	c.Name = ""
	c.Killed = false
	c.Xstate = 0
	c.AS = nil
	c.Trapframe = nil
	c.Cwd = nil
}
