// Package proc implements the process table and lifecycle operations of
// spec §4.7: the PCB, its fixed table with scan-and-lock allocation, and
// fork/exit/wait/kill/grow. Grounded on
// original_source/xv6-riscv-riscv/kernel/proc.h for the PCB field list and
// state machine, and on the teacher's proc_new's "scan, lock each slot to
// test, claim" allocation idiom (biscuit/src/kernel/main.go).
package proc

import (
	"sync"

	"biscuit/defs"
	"biscuit/fs"
	"biscuit/ksync"
	"biscuit/mem"
)

// State is the PCB lifecycle state of spec §3's glossary entry; all
// transitions are those spec §4.7 describes.
type State int

const (
	Unused State = iota
	Used
	Sleeping
	Runnable
	Running
	Zombie
)

func (s State) String() string {
	switch s {
	case Unused:
		return "unused"
	case Used:
		return "used"
	case Sleeping:
		return "sleeping"
	case Runnable:
		return "runnable"
	case Running:
		return "running"
	case Zombie:
		return "zombie"
	default:
		return "invalid"
	}
}

const (
	NProc     = 64
	NOFile    = 16
	MaxName   = 16
	PrioMin   = 0
	PrioMax   = 9
	PrioDflt  = 5
	MlfqNQ    = 5
	MlfqTopLv = 0
)

// Proc is the process control block. Fields other than Ref-free bookkeeping
// require holding Lock; Parent requires the Table's WaitLock held before
// Lock, the sole documented lock order (spec §5).
type Proc struct {
	Lock *ksync.Spinlock

	// guarded by Lock
	State       State
	Pid         int
	SleepChan   ksync.Chan
	Killed      bool
	Xstate      int
	Priority    int
	MlfqLevel   int
	TimeUsed    int
	TimeQuantum int
	Errno       defs.Err_t

	// guarded by the Table's WaitLock
	Parent *Proc

	// private to the owning process; no lock needed
	Sz        uint64
	AS        mem.AddressSpace
	Trapframe *TrapFrame
	Context   Context
	KStack    uintptr
	Ofile     [NOFile]*fs.File
	Cwd       *fs.Inode
	Name      string

	// Mem is a flat byte slice standing in for the content a real
	// user address space would hold behind AS's mappings: the actual
	// paged memory a syscall's copyin/copyout primitives would touch
	// is hardware/page-table machinery out of scope per spec §1, so
	// string and buffer arguments are read from and written to this
	// slice directly by virtual address (see usermem.go).
	Mem []byte
}

// Table is the fixed-size process table of spec §5 ("slots are per-lock;
// allocation is by scan and test-and-claim") plus the WaitLock every
// Parent mutation or Wait scan must hold, ordered before any PCB lock.
type Table struct {
	WaitLock *ksync.Spinlock

	mu      sync.Mutex // protects pidNext only; never held across a PCB lock
	procs   [NProc]*Proc
	pidNext int
}

// Procs returns every slot in the table, including Unused ones; callers
// filter by State themselves under each slot's own Lock.
func (t *Table) Procs() []*Proc {
	return t.procs[:]
}

func NewTable() *Table {
	t := &Table{WaitLock: ksync.NewSpinlock("wait_lock"), pidNext: 1}
	for i := range t.procs {
		t.procs[i] = &Proc{Lock: ksync.NewSpinlock("proc")}
	}
	return t
}

// spinLocker adapts a Spinlock plus the calling Cpu to sync.Locker so
// ksync.Sleep (which takes a sync.Locker) can be used with spinlocks that
// otherwise require the explicit Cpu argument spec §9 calls for.
type spinLocker struct {
	lock *ksync.Spinlock
	cpu  *Cpu
}

func (l spinLocker) Lock()   { l.lock.Acquire(l.cpu.Cpu) }
func (l spinLocker) Unlock() { l.lock.Release(l.cpu.Cpu) }

func truncName(name string) string {
	if len(name) > MaxName {
		return name[:MaxName]
	}
	return name
}

// Alloc scans the table for an Unused slot, locking each in turn to test it
// (spec §4.7's "linear scan; locks each slot to test"), and claims the
// first hit: assigns a pid, a fresh trapframe-page-equivalent, a root
// address space, and a kernel stack tag, leaving state Used. Returns
// ENOMEM-flavored failure (here ENFILE, the table's own exhaustion error)
// if every slot is taken.
func (t *Table) Alloc(cpu *Cpu, alloc *mem.Allocator, name string) (*Proc, defs.Err_t) {
	for _, p := range t.procs {
		p.Lock.Acquire(cpu.Cpu)
		if p.State != Unused {
			p.Lock.Release(cpu.Cpu)
			continue
		}

		t.mu.Lock()
		pid := t.pidNext
		t.pidNext++
		t.mu.Unlock()

		tfFrame, ok := alloc.Alloc()
		if !ok {
			p.Lock.Release(cpu.Cpu)
			return nil, defs.ENOMEM
		}

		p.Pid = pid
		p.State = Used
		p.Killed = false
		p.Xstate = 0
		p.Priority = PrioDflt
		p.MlfqLevel = MlfqTopLv
		p.TimeUsed = 0
		p.TimeQuantum = 1 << MlfqTopLv
		p.Errno = 0
		p.Sz = 0
		p.AS = mem.NewSimAddressSpace()
		p.Trapframe = &TrapFrame{}
		p.Context = Context{}
		p.KStack = uintptr(tfFrame) << 12
		p.Ofile = [NOFile]*fs.File{}
		p.Cwd = nil
		p.Name = truncName(name)
		p.SleepChan = nil
		p.Mem = nil

		p.Lock.Release(cpu.Cpu)
		return p, 0
	}
	return nil, defs.ENFILE
}
