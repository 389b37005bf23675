package dispatch

import (
	"encoding/binary"

	"biscuit/defs"
	"biscuit/proc"
	"biscuit/sched"
)

func findByPid(k *Kernel, cpu *proc.Cpu, pid int) *proc.Proc {
	for _, c := range k.Table.Procs() {
		c.Lock.Acquire(cpu.Cpu)
		hit := c.State != proc.Unused && c.Pid == pid
		c.Lock.Release(cpu.Cpu)
		if hit {
			return c
		}
	}
	return nil
}

// sysFork implements spec §6's fork(): returns the child's pid to the
// parent, 0 to the child (proc.Fork already zeroes the child's trap frame
// return slot; Dispatch's own SetReturn then overwrites the parent's with
// this handler's result). The priority-selector "child outranks parent,
// parent yields" rule (spec §4.6) is left to whatever drives the
// scheduling loop around Dispatch, since voluntary yield is a property of
// the RunFunc that called this handler, not of the handler itself.
func sysFork(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	eq, _ := k.Sched.Enqueuer()
	child, err := proc.Fork(cpu, k.Table, k.Alloc, k.FS, p, eq)
	if err != 0 {
		return int64(err)
	}
	return int64(child.Pid)
}

func sysExit(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	initProc := findByPid(k, cpu, k.InitPid)
	eq, _ := k.Sched.Enqueuer()
	proc.Exit(cpu, k.Table, k.FS, p, int(tf.ArgInt(0)), initProc, eq)
	return 0
}

func sysWait(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	pid, xstate, err := proc.Wait(cpu, k.Table, k.Alloc, p)
	if err != 0 {
		return int64(err)
	}
	statusVA := tf.ArgAddr(0)
	if statusVA != 0 {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(xstate))
		if cerr := proc.CopyOut(p, statusVA, buf[:]); cerr != 0 {
			return int64(cerr)
		}
	}
	return int64(pid)
}

func sysKill(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	target := int(tf.ArgInt(0))
	if err := proc.Kill(cpu, k.Table, target); err != 0 {
		return int64(err)
	}
	return 0
}

func sysGetpid(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	p.Lock.Acquire(cpu.Cpu)
	pid := p.Pid
	p.Lock.Release(cpu.Cpu)
	return int64(pid)
}

// sysSbrk implements spec §6's sbrk(n, mode): grows or shrinks the
// calling process's address space by n bytes, eagerly or lazily per mode,
// and returns the region's size prior to the call (the conventional sbrk
// return value) on success.
func sysSbrk(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	n := tf.ArgLong(0)
	mode := tf.ArgInt(1)
	oldSz := int64(p.Sz)
	if err := proc.Grow(p, k.Alloc, n, mode == SbrkEager); err != 0 {
		return int64(err)
	}
	return oldSz
}

// sysPause implements spec §6's pause(ticks): registers a wakeup deadline
// with the kernel's tick-driven timer registry, then blocks the calling
// process until Tick observes the deadline has elapsed.
func sysPause(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	ticks := tf.ArgLong(0)
	if ticks <= 0 {
		return 0
	}
	k.schedulePause(p, ticks)
	proc.Pause(cpu, p)
	return 0
}

func sysUptime(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	return int64(k.Uptime())
}

func sysSetpriority(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	pid := int(tf.ArgInt(0))
	value := int(tf.ArgInt(1))
	if value < proc.PrioMin || value > proc.PrioMax {
		return int64(defs.EINVAL)
	}
	target := findByPid(k, cpu, pid)
	if target == nil {
		return int64(defs.ESRCH)
	}
	target.Lock.Acquire(cpu.Cpu)
	target.Priority = value
	target.Lock.Release(cpu.Cpu)
	return 0
}

func sysGetpriority(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	pid := int(tf.ArgInt(0))
	target := findByPid(k, cpu, pid)
	if target == nil {
		return int64(defs.ESRCH)
	}
	target.Lock.Acquire(cpu.Cpu)
	prio := target.Priority
	target.Lock.Release(cpu.Cpu)
	return int64(prio)
}

// sysGeterrno returns the magnitude Dispatch stored in p.Errno after the
// last failing call, never a negative Err_t — returning a positive value
// here is what keeps Dispatch's own negative-result check from rewriting a
// distinct error code down to -1 a second time.
func sysGeterrno(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	p.Lock.Acquire(cpu.Cpu)
	errno := p.Errno
	p.Lock.Release(cpu.Cpu)
	return int64(errno)
}

// sysSetScheduler implements set_scheduler(kind), spec §6: swaps the
// kernel's active Selector. Processes already queued under the old
// selector are not migrated (sched.Scheduler.SetSelector's contract);
// round-robin and priority rebuild their candidate set by rescanning the
// table every Select, so only a switch to/from mlfq loses queue state.
func sysSetScheduler(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	kind := sched.Kind(tf.ArgInt(0))
	switch kind {
	case sched.KindRoundRobin:
		k.Sched.SetSelector(sched.NewRoundRobin(k.Table))
	case sched.KindPriority:
		k.Sched.SetSelector(sched.NewPriority(k.Table))
	case sched.KindMlfq:
		k.Sched.SetSelector(sched.NewMlfq())
	default:
		return int64(defs.EINVAL)
	}
	return 0
}

// sysExec is a stub: exec itself — program image loading, argv/envp
// layout, address-space replacement — is an external collaborator out of
// scope per spec §1 (original_source's sysfile.c sys_exec is not part of
// the retrieved kernel-proper sources). The dispatcher contract still
// needs a numbered entry so a real exec implementation can be dropped in
// without renumbering every other call.
func sysExec(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	return int64(defs.ENOSYS)
}
