package main

import (
	"encoding/binary"

	"biscuit/dispatch"
	"biscuit/mem"
	"biscuit/proc"
)

// The functions in this file stand in for what a real user program would
// do on its own: lay out arguments in its address space before trapping
// into the kernel. Since exec (spec §1) is out of scope, cmd/kernelsim
// drives processes directly instead of loading a real ELF image — these
// helpers are the minimal "user-space runtime" that does.

// userHeap bump-allocates scratch space in p's simulated user memory by
// growing its address space through the same sbrk path a real user
// program would use. It is not a general-purpose allocator; callers never
// free, matching a throwaway demo program's needs.
func userHeap(p *proc.Proc, alloc *mem.Allocator, n int) uintptr {
	va := p.Sz
	proc.Grow(p, alloc, int64(n), true)
	return uintptr(va)
}

// writeStr copies a NUL-terminated string into fresh user scratch space
// and returns its virtual address.
func writeStr(p *proc.Proc, alloc *mem.Allocator, s string) uintptr {
	va := userHeap(p, alloc, len(s)+1)
	copy(p.Mem[va:], s)
	p.Mem[int(va)+len(s)] = 0
	return va
}

// doSyscall lays out up to seven positional arguments into p's trap frame
// exactly as a real trap would, sets the call number in a7, and invokes
// the dispatcher (spec §4.9).
func doSyscall(k *dispatch.Kernel, cpu *proc.Cpu, p *proc.Proc, num int, args ...uint64) int64 {
	tf := p.Trapframe
	for i := 0; i < 7; i++ {
		if i < len(args) {
			tf.Args[i] = args[i]
		} else {
			tf.Args[i] = 0
		}
	}
	tf.Args[7] = uint64(num)
	return dispatch.Dispatch(k, cpu, p)
}

// procByPid scans the process table for pid, following the same
// lock-then-test discipline dispatch.findByPid uses internally (spec §5:
// all PCB fields but Parent require its own lock).
func procByPid(k *dispatch.Kernel, cpu *proc.Cpu, pid int) *proc.Proc {
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

// lastErrno fetches the calling process's most recent errno through the
// same geterrno() syscall a real program would use, rather than assuming
// anything about what a failed call's -1 return encodes.
func lastErrno(k *dispatch.Kernel, cpu *proc.Cpu, p *proc.Proc) int64 {
	return doSyscall(k, cpu, p, dispatch.SysGeterrno)
}

func putU32(p *proc.Proc, va uintptr, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	copy(p.Mem[va:], b[:])
}

func getU32(p *proc.Proc, va uintptr) uint32 {
	return binary.LittleEndian.Uint32(p.Mem[va:])
}
