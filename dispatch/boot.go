package dispatch

import (
	"biscuit/defs"
	"biscuit/fs"
	"biscuit/proc"
)

// BootInit allocates the very first process (traditionally pid 1, "init"):
// a PCB with no parent, its working directory set to the filesystem root,
// and an immediately runnable state. Every other process descends from it
// through Fork. Exiting this process is fatal (proc.Exit's documented
// behavior), matching a real kernel's reliance on init never dying.
func (k *Kernel) BootInit(cpu *proc.Cpu, name string) (*proc.Proc, defs.Err_t) {
	initProc, err := k.Table.Alloc(cpu, k.Alloc, name)
	if err != 0 {
		return nil, err
	}
	initProc.Cwd = k.FS.Get(fs.RootIno)

	initProc.Lock.Acquire(cpu.Cpu)
	initProc.State = proc.Runnable
	initProc.Lock.Release(cpu.Cpu)

	if eq, ok := k.Sched.Enqueuer(); ok {
		eq.Enqueue(initProc)
	}

	k.InitPid = initProc.Pid
	return initProc, 0
}
