package proc

import "biscuit/ksync"

// Wakeup wakes every goroutine sleeping on p used as a sleep channel — the
// convention spec §4.7's Wait uses ("sleep on the caller's PCB as channel")
// and Exit uses to wake a waiting parent.
func Wakeup(p *Proc) { ksync.Wakeup(p) }

// Pause implements the blocking half of spec §6's pause(ticks): mark p
// sleeping on itself as channel and block until some other goroutine
// calls Wakeup(p). The caller (dispatch's pause handler) is responsible
// for arranging that wakeup once the requested number of ticks elapse;
// Pause itself knows nothing about tick counting.
func Pause(cpu *Cpu, p *Proc) {
	p.Lock.Acquire(cpu.Cpu)
	p.State = Sleeping
	ksync.Sleep(p, spinLocker{p.Lock, cpu})
	p.Lock.Release(cpu.Cpu)
}
