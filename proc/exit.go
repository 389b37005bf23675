package proc

import (
	"biscuit/fs"
)

// Exit implements spec §4.7's exit: close every open file, release the cwd
// reference within a filesystem transaction, re-parent every child to init
// under the table's WaitLock, wake the parent, record the exit status, and
// set state zombie. Exiting the init process is fatal, matching "exit of
// the init process is fatal". The PCB slot itself is reclaimed later by
// the parent's Wait.
func Exit(cpu *Cpu, table *Table, fsys *fs.FS, p *Proc, xstate int, initProc *Proc, eq Enqueuer) {
	if p == initProc {
		panic("proc: init process exited")
	}

	for i, f := range p.Ofile {
		if f != nil {
			f.Close()
			p.Ofile[i] = nil
		}
	}

	if p.Cwd != nil {
		fsys.Log.BeginOp()
		fsys.Put(p.Cwd)
		fsys.Log.EndOp()
		p.Cwd = nil
	}

	table.WaitLock.Acquire(cpu.Cpu)
	for _, c := range table.procs {
		if c.Parent == p {
			c.Parent = initProc
			Wakeup(initProc)
		}
	}
	parent := p.Parent
	table.WaitLock.Release(cpu.Cpu)

	if eq != nil {
		eq.Dequeue(p)
	}

	p.Lock.Acquire(cpu.Cpu)
	p.Xstate = xstate
	p.State = Zombie
	p.Lock.Release(cpu.Cpu)

	if parent != nil {
		Wakeup(parent)
	}
}
