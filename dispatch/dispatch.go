package dispatch

import (
	"biscuit/defs"
	"biscuit/proc"
)

// Handler implements one system call's body. A negative return is an
// Err_t from the defs taxonomy; Dispatch converts it to the user-visible
// convention below.
type Handler func(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64

var table = map[int]Handler{
	SysFork:         sysFork,
	SysExit:         sysExit,
	SysWait:         sysWait,
	SysPipe:         sysPipe,
	SysRead:         sysRead,
	SysWrite:        sysWrite,
	SysClose:        sysClose,
	SysDup:          sysDup,
	SysOpen:         sysOpen,
	SysFstat:        sysFstat,
	SysLink:         sysLink,
	SysUnlink:       sysUnlink,
	SysMkdir:        sysMkdir,
	SysMknod:        sysMknod,
	SysChdir:        sysChdir,
	SysExec:         sysExec,
	SysSbrk:         sysSbrk,
	SysPause:        sysPause,
	SysUptime:       sysUptime,
	SysKill:         sysKill,
	SysGetpid:       sysGetpid,
	SysSymlink:      sysSymlink,
	SysReadlink:     sysReadlink,
	SysSetpriority:  sysSetpriority,
	SysGetpriority:  sysGetpriority,
	SysGeterrno:     sysGeterrno,
	SysSetScheduler: sysSetScheduler,
}

// Dispatch implements spec §4.9: read the syscall number out of a7, look
// it up in the static table (an unknown number is "function not
// implemented"), run the handler, and apply the last-error convention —
// a negative handler result has its magnitude (a positive Err_t) recorded
// in p's last-error field and the user's return register gets -1;
// anything else clears last-error and is returned verbatim. Storing the
// magnitude, not the signed Err_t itself, is what lets sysGeterrno hand
// the value straight back through Dispatch's own negative-result check
// without every error collapsing to -1.
func Dispatch(k *Kernel, cpu *proc.Cpu, p *proc.Proc) int64 {
	tf := p.Trapframe
	num := int(tf.Arg(7))

	h, ok := table[num]
	if !ok {
		p.Errno = -defs.ENOSYS
		tf.SetReturn(-1)
		return -1
	}

	result := h(k, cpu, p, tf)
	if result < 0 {
		p.Errno = -defs.Err_t(result)
		tf.SetReturn(-1)
		return -1
	}
	p.Errno = 0
	tf.SetReturn(result)
	return result
}
