package sched

import "biscuit/proc"

// Priority implements spec §4.6's static-priority selector: highest
// Priority (0-9) wins, ties broken by table order. Aging is not
// implemented, matching the spec's explicit "static priorities; aging not
// implemented".
type Priority struct {
	table *proc.Table
}

func NewPriority(table *proc.Table) *Priority {
	return &Priority{table: table}
}

func (*Priority) Kind() Kind { return KindPriority }

func (pr *Priority) Select(cpu *proc.Cpu) *proc.Proc {
	var best *proc.Proc
	bestPrio := -1
	for _, p := range pr.table.Procs() {
		p.Lock.Acquire(cpu.Cpu)
		runnable := p.State == proc.Runnable
		prio := p.Priority
		p.Lock.Release(cpu.Cpu)
		if runnable && prio > bestPrio {
			best = p
			bestPrio = prio
		}
	}
	return best
}

func (*Priority) OnYield(p *proc.Proc) {}
func (*Priority) OnSleep(p *proc.Proc) {}
func (*Priority) OnWake(p *proc.Proc)  {}
func (*Priority) OnExit(p *proc.Proc)  {}
