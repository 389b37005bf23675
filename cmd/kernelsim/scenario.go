package main

import (
	"fmt"

	"biscuit/defs"
	"biscuit/dispatch"
	"biscuit/proc"
)

// The scenario runners below drive four concrete situations end to end
// (COW fork, a multi-block file, a symlink chain and cycle, and errno
// reporting), the same way a bring-up test
// program on real hardware would: entirely through the syscall surface,
// never by reaching into kernel state directly.

// cowScenario forks a process, lets the child see the parent's page
// unmodified, has the child write its own copy, and checks the parent's
// page is untouched after the child exits — spec §3's COW soundness
// invariant.
func cowScenario(k *dispatch.Kernel, cpu *proc.Cpu, parent *proc.Proc) (string, error) {
	va := userHeap(parent, k.Alloc, 4)
	putU32(parent, va, 42)

	rc := doSyscall(k, cpu, parent, dispatch.SysFork)
	if rc < 0 {
		return "", fmt.Errorf("fork: errno %d", lastErrno(k, cpu, parent))
	}
	childPid := int(rc)
	child := procByPid(k, cpu, childPid)
	if child == nil {
		return "", fmt.Errorf("fork reported pid %d but it is not in the table", childPid)
	}

	before := getU32(child, va)
	if before != 42 {
		return "", fmt.Errorf("child observed %d before its own write, want 42", before)
	}
	putU32(child, va, 100)

	if rc := doSyscall(k, cpu, child, dispatch.SysExit, 0); rc != 0 {
		return "", fmt.Errorf("child exit: unexpected return %d", rc)
	}

	statusVA := userHeap(parent, k.Alloc, 4)
	wpid := doSyscall(k, cpu, parent, dispatch.SysWait, uint64(statusVA))
	if wpid != int64(childPid) {
		return "", fmt.Errorf("wait returned pid %d, want %d", wpid, childPid)
	}

	after := getU32(parent, va)
	if after != 42 {
		return "", fmt.Errorf("parent's page changed to %d after child wrote its copy, want 42", after)
	}
	free, total := k.Alloc.Stats()
	return fmt.Sprintf("cow: parent page unaffected by child's write (still 42), %d/%d frames free after reap", free, total), nil
}

// largeFileScenario writes a multi-block file through direct and single
// indirect block ranges and reads it back to check every block round
// trips, spec §7's read/write round-trip invariant.
func largeFileScenario(k *dispatch.Kernel, cpu *proc.Cpu, p *proc.Proc) (string, error) {
	const nblocks = 300
	const bsize = 4096

	pathVA := writeStr(p, k.Alloc, "/big")
	fd := doSyscall(k, cpu, p, dispatch.SysOpen, uint64(pathVA), uint64(dispatch.OCreate|dispatch.OReadWrite))
	if fd < 0 {
		return "", fmt.Errorf("open for write: errno %d", lastErrno(k, cpu, p))
	}

	scratch := userHeap(p, k.Alloc, bsize)
	for i := 0; i < nblocks; i++ {
		putU32(p, scratch, uint32(i))
		for j := uint32(4); j < bsize; j++ {
			p.Mem[int(scratch)+int(j)] = byte(i)
		}
		if rc := doSyscall(k, cpu, p, dispatch.SysWrite, uint64(fd), uint64(scratch), bsize); rc != bsize {
			return "", fmt.Errorf("write block %d: got %d, errno %d", i, rc, lastErrno(k, cpu, p))
		}
	}
	if rc := doSyscall(k, cpu, p, dispatch.SysClose, uint64(fd)); rc != 0 {
		return "", fmt.Errorf("close after write: unexpected return %d", rc)
	}

	fd = doSyscall(k, cpu, p, dispatch.SysOpen, uint64(pathVA), uint64(dispatch.OReadOnly))
	if fd < 0 {
		return "", fmt.Errorf("open for read: errno %d", lastErrno(k, cpu, p))
	}
	for i := 0; i < nblocks; i++ {
		if rc := doSyscall(k, cpu, p, dispatch.SysRead, uint64(fd), uint64(scratch), bsize); rc != bsize {
			return "", fmt.Errorf("read block %d: got %d", i, rc)
		}
		if got := getU32(p, scratch); got != uint32(i) {
			return "", fmt.Errorf("block %d tag mismatch: got %d", i, got)
		}
		if tail := p.Mem[int(scratch)+bsize-1]; tail != byte(i) {
			return "", fmt.Errorf("block %d trailing byte mismatch: got %d", i, tail)
		}
	}
	doSyscall(k, cpu, p, dispatch.SysClose, uint64(fd))
	return fmt.Sprintf("large file: %d blocks (%d bytes) round-tripped across direct and indirect ranges", nblocks, nblocks*bsize), nil
}

// symlinkScenario builds a short symlink chain and resolves it, then
// creates a cycle and checks namex bails out instead of spinning forever,
// spec §7's symlink-loop invariant.
func symlinkScenario(k *dispatch.Kernel, cpu *proc.Cpu, p *proc.Proc) (string, error) {
	realVA := writeStr(p, k.Alloc, "/real")
	fd := doSyscall(k, cpu, p, dispatch.SysOpen, uint64(realVA), uint64(dispatch.OCreate|dispatch.OReadWrite))
	if fd < 0 {
		return "", fmt.Errorf("create /real: errno %d", lastErrno(k, cpu, p))
	}
	doSyscall(k, cpu, p, dispatch.SysClose, uint64(fd))

	link1TargetVA := writeStr(p, k.Alloc, "/real")
	link1PathVA := writeStr(p, k.Alloc, "/link1")
	if rc := doSyscall(k, cpu, p, dispatch.SysSymlink, uint64(link1TargetVA), uint64(link1PathVA)); rc != 0 {
		return "", fmt.Errorf("symlink /link1 -> /real: errno %d", lastErrno(k, cpu, p))
	}
	link2TargetVA := writeStr(p, k.Alloc, "/link1")
	link2PathVA := writeStr(p, k.Alloc, "/link2")
	if rc := doSyscall(k, cpu, p, dispatch.SysSymlink, uint64(link2TargetVA), uint64(link2PathVA)); rc != 0 {
		return "", fmt.Errorf("symlink /link2 -> /link1: errno %d", lastErrno(k, cpu, p))
	}

	fd = doSyscall(k, cpu, p, dispatch.SysOpen, uint64(link2PathVA), uint64(dispatch.OReadOnly))
	if fd < 0 {
		return "", fmt.Errorf("open /link2 through chain: errno %d", lastErrno(k, cpu, p))
	}
	doSyscall(k, cpu, p, dispatch.SysClose, uint64(fd))

	loopAVA := writeStr(p, k.Alloc, "/loopb")
	loopAPathVA := writeStr(p, k.Alloc, "/loopa")
	doSyscall(k, cpu, p, dispatch.SysSymlink, uint64(loopAVA), uint64(loopAPathVA))
	loopBVA := writeStr(p, k.Alloc, "/loopa")
	loopBPathVA := writeStr(p, k.Alloc, "/loopb")
	doSyscall(k, cpu, p, dispatch.SysSymlink, uint64(loopBVA), uint64(loopBPathVA))

	fd = doSyscall(k, cpu, p, dispatch.SysOpen, uint64(loopAPathVA), uint64(dispatch.OReadOnly))
	if fd >= 0 {
		doSyscall(k, cpu, p, dispatch.SysClose, uint64(fd))
		return "", fmt.Errorf("opening a symlink cycle succeeded, want an error")
	}

	return "symlinks: two-hop chain resolved, a symlink cycle was rejected instead of looping", nil
}

// errnoScenario checks that a failing syscall's errno is readable through
// geterrno afterward and that an unrelated getpid call made next still
// succeeds.
func errnoScenario(k *dispatch.Kernel, cpu *proc.Cpu, p *proc.Proc) (string, error) {
	missingVA := writeStr(p, k.Alloc, "/does-not-exist")
	fd := doSyscall(k, cpu, p, dispatch.SysOpen, uint64(missingVA), uint64(dispatch.OReadOnly))
	if fd >= 0 {
		return "", fmt.Errorf("open of a missing path unexpectedly succeeded")
	}

	errno := lastErrno(k, cpu, p)
	wantErrno := int64(-defs.ENOENT)
	if errno != wantErrno {
		return "", fmt.Errorf("geterrno returned %d, want %d (ENOENT's magnitude, the failed open's errno)", errno, wantErrno)
	}

	pid := doSyscall(k, cpu, p, dispatch.SysGetpid)
	if pid < 0 {
		return "", fmt.Errorf("unrelated getpid call failed after a prior error: errno %d", lastErrno(k, cpu, p))
	}
	return fmt.Sprintf("errno: geterrno reported %d after the failed open, unrelated getpid still succeeded", errno), nil
}

// runScenarios runs every scenario against its own child process forked
// off init, so a failure in one cannot corrupt another's address space,
// and returns a human-readable report line per scenario.
func runScenarios(k *dispatch.Kernel, cpu *proc.Cpu, init *proc.Proc) []string {
	type scenario struct {
		name string
		run  func(*dispatch.Kernel, *proc.Cpu, *proc.Proc) (string, error)
	}
	scenarios := []scenario{
		{"large file", largeFileScenario},
		{"symlinks", symlinkScenario},
		{"errno", errnoScenario},
	}

	var lines []string
	if line, err := cowScenario(k, cpu, init); err != nil {
		lines = append(lines, fmt.Sprintf("FAIL cow: %v", err))
	} else {
		lines = append(lines, "ok   "+line)
	}

	for _, sc := range scenarios {
		rc := doSyscall(k, cpu, init, dispatch.SysFork)
		if rc < 0 {
			lines = append(lines, fmt.Sprintf("FAIL %s: fork setup: errno %d", sc.name, lastErrno(k, cpu, init)))
			continue
		}
		child := procByPid(k, cpu, int(rc))
		line, err := sc.run(k, cpu, child)
		doSyscall(k, cpu, child, dispatch.SysExit, 0)
		var statusVA = userHeap(init, k.Alloc, 4)
		doSyscall(k, cpu, init, dispatch.SysWait, uint64(statusVA))
		if err != nil {
			lines = append(lines, fmt.Sprintf("FAIL %s: %v", sc.name, err))
		} else {
			lines = append(lines, "ok   "+line)
		}
	}
	return lines
}
