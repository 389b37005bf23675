package proc

import "biscuit/defs"

// Kill implements spec §4.7's kill: locate the target by pid, set its
// Killed flag, and if it is sleeping transition it to runnable so it
// observes the flag on its next return to user mode. Killing never
// preempts synchronously — a running target only notices on its next
// voluntary check.
func Kill(cpu *Cpu, table *Table, pid int) defs.Err_t {
	for _, p := range table.procs {
		p.Lock.Acquire(cpu.Cpu)
		if p.State == Unused || p.Pid != pid {
			p.Lock.Release(cpu.Cpu)
			continue
		}
		p.Killed = true
		if p.State == Sleeping {
			p.State = Runnable
		}
		p.Lock.Release(cpu.Cpu)
		return 0
	}
	return defs.ESRCH
}
