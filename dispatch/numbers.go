package dispatch

// Syscall numbers, read from trap frame argument slot 7 (a7), matching
// original_source/xv6-riscv-riscv/kernel/syscall.h's SYS_* numbering
// scheme (arbitrary stable small integers, not a public ABI of their own).
const (
	SysFork = iota + 1
	SysExit
	SysWait
	SysPipe
	SysRead
	SysWrite
	SysClose
	SysDup
	SysOpen
	SysFstat
	SysLink
	SysUnlink
	SysMkdir
	SysMknod
	SysChdir
	SysExec
	SysSbrk
	SysPause
	SysUptime
	SysKill
	SysGetpid
	SysSymlink
	SysReadlink
	SysSetpriority
	SysGetpriority
	SysGeterrno
	SysSetScheduler
)

// Open flags for SysOpen, spec §6: read, write, read-write, create,
// truncate, combined as a bitmask.
const (
	OReadOnly  = 0x0
	OWriteOnly = 0x1
	OReadWrite = 0x2
	OCreate    = 0x200
	OTrunc     = 0x400
)

// Sbrk modes, spec §6: eager maps fresh frames immediately, lazy defers to
// the COW/page-fault path on first touch.
const (
	SbrkEager = 0
	SbrkLazy  = 1
)
