package sched

import "biscuit/proc"

// RoundRobin implements spec §4.6's simplest selector: the first runnable
// process found scanning table order. The only state it keeps is the
// slot index it last handed out, so the next Select resumes the scan
// right after it rather than restarting at slot 0 every time — the same
// shape as xv6's scheduler() for-loop, whose index survives across the
// swtch back into it. Without that cursor an earlier CPU-bound slot would
// be reselected every Step and starve every later one, violating spec
// §8's round-robin fairness invariant.
type RoundRobin struct {
	table *proc.Table
	last  int
}

func NewRoundRobin(table *proc.Table) *RoundRobin {
	return &RoundRobin{table: table, last: -1}
}

func (*RoundRobin) Kind() Kind { return KindRoundRobin }

func (r *RoundRobin) Select(cpu *proc.Cpu) *proc.Proc {
	procs := r.table.Procs()
	n := len(procs)
	for i := 1; i <= n; i++ {
		idx := (r.last + i) % n
		p := procs[idx]
		p.Lock.Acquire(cpu.Cpu)
		runnable := p.State == proc.Runnable
		p.Lock.Release(cpu.Cpu)
		if runnable {
			r.last = idx
			return p
		}
	}
	return nil
}

func (*RoundRobin) OnYield(p *proc.Proc) {}
func (*RoundRobin) OnSleep(p *proc.Proc) {}
func (*RoundRobin) OnWake(p *proc.Proc)  {}
func (*RoundRobin) OnExit(p *proc.Proc)  {}
