package proc

import "biscuit/ksync"

// Cpu is the per-core record of spec §3: the currently running process (nil
// while the scheduler itself runs), the scheduler's saved context, and the
// interrupt-disable nesting state every Spinlock acquire/release on this
// core consults. The nesting bookkeeping is ksync.Cpu itself; Cpu adds the
// two fields spec's scheduler needs on top of it.
type Cpu struct {
	*ksync.Cpu
	Proc    *Proc
	Context Context
}

func NewCpu() *Cpu {
	return &Cpu{Cpu: &ksync.Cpu{}}
}
