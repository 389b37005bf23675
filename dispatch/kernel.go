// Package dispatch implements the system-call dispatcher of spec §4.9: a
// numbered table of handlers, positional argument extraction from a
// trap frame, and the "-1 plus last-error" return convention. Grounded on
// original_source/xv6-riscv-riscv/kernel/syscall.c's syscalls[] table and
// sysfile.c/sysproc.c's individual sys_* handlers.
package dispatch

import (
	"sync"

	"biscuit/defs"
	"biscuit/fs"
	"biscuit/mem"
	"biscuit/proc"
	"biscuit/sched"
)

// Kernel bundles the collaborators every handler needs: the process
// table, the mounted filesystem (and its root inode, resolved once at
// boot), the frame allocator, and the active scheduler. One Kernel value
// models one booted instance (SPEC_FULL.md's boot sequence).
type Kernel struct {
	Table   *proc.Table
	FS      *fs.FS
	Alloc   *mem.Allocator
	Sched   *sched.Scheduler
	Root    *fs.Inode
	InitPid int

	mu        sync.Mutex
	tickCount uint64
	timers    map[*proc.Proc]uint64
}

// NewKernel wires a booted kernel instance around an already-mounted
// filesystem and process table.
func NewKernel(table *proc.Table, fsys *fs.FS, alloc *mem.Allocator, sc *sched.Scheduler, initPid int) *Kernel {
	root := fsys.Get(fs.RootIno)
	return &Kernel{
		Table:   table,
		FS:      fsys,
		Alloc:   alloc,
		Sched:   sc,
		Root:    root,
		InitPid: initPid,
		timers:  map[*proc.Proc]uint64{},
	}
}

// Tick advances the kernel's uptime counter by one and wakes any process
// sleeping on a pause() deadline that has elapsed; cmd/kernelsim's timer
// loop calls this once per simulated tick.
func (k *Kernel) Tick(cpu *proc.Cpu) {
	k.mu.Lock()
	k.tickCount++
	now := k.tickCount
	var due []*proc.Proc
	for p, deadline := range k.timers {
		if deadline <= now {
			due = append(due, p)
			delete(k.timers, p)
		}
	}
	k.mu.Unlock()

	for _, p := range due {
		k.Sched.Wake(cpu, p)
		proc.Wakeup(p)
	}
}

// schedulePause registers p to be woken once Uptime reaches now+ticks.
func (k *Kernel) schedulePause(p *proc.Proc, ticks int64) {
	if ticks < 0 {
		ticks = 0
	}
	k.mu.Lock()
	k.timers[p] = k.tickCount + uint64(ticks)
	k.mu.Unlock()
}

// Uptime returns the number of ticks since boot (spec §6's uptime()).
func (k *Kernel) Uptime() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tickCount
}
