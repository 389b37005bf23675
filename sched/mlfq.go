package sched

import (
	"sync"

	"biscuit/proc"
)

// Mlfq implements spec §4.6's multi-level feedback queue: five FIFO
// queues (0 = highest), new processes enter queue 0, a process that
// exhausts its quantum (2^level ticks) drops one level, a process that
// sleeps is promoted one level on wake. It also implements proc.Enqueuer
// so Fork/Exit can hand it processes directly.
type Mlfq struct {
	mu     sync.Mutex
	queues [proc.MlfqNQ][]*proc.Proc
}

func NewMlfq() *Mlfq {
	return &Mlfq{}
}

func (*Mlfq) Kind() Kind { return KindMlfq }

func clampLevel(lvl int) int {
	if lvl < 0 {
		return 0
	}
	if lvl >= proc.MlfqNQ {
		return proc.MlfqNQ - 1
	}
	return lvl
}

// Enqueue implements proc.Enqueuer: admits p at its current MlfqLevel
// (queue 0 for a freshly allocated process, per spec's "new processes
// enter queue 0"; a forked child carries its parent's level).
func (m *Mlfq) Enqueue(p *proc.Proc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lvl := clampLevel(p.MlfqLevel)
	m.queues[lvl] = append(m.queues[lvl], p)
}

// Dequeue implements proc.Enqueuer: removes p from whichever queue
// currently holds it, used by Exit.
func (m *Mlfq) Dequeue(p *proc.Proc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(p)
}

func (m *Mlfq) removeLocked(p *proc.Proc) bool {
	for lvl := range m.queues {
		q := m.queues[lvl]
		for i, cand := range q {
			if cand == p {
				m.queues[lvl] = append(q[:i], q[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Select returns the head of the highest non-empty level, popping it —
// the process is not a candidate again until OnYield or OnWake re-admits
// it (see Selector's doc comment on what "dequeued" means here).
func (m *Mlfq) Select(cpu *proc.Cpu) *proc.Proc {
	m.mu.Lock()
	defer m.mu.Unlock()
	for lvl := 0; lvl < proc.MlfqNQ; lvl++ {
		if len(m.queues[lvl]) > 0 {
			p := m.queues[lvl][0]
			m.queues[lvl] = m.queues[lvl][1:]
			return p
		}
	}
	return nil
}

// OnYield accounts one tick against p's quantum; once it's exhausted, p
// drops one level and its usage counter resets, then it re-joins its
// (possibly new) queue.
func (m *Mlfq) OnYield(p *proc.Proc) {
	p.TimeUsed++
	quantum := 1 << uint(clampLevel(p.MlfqLevel))
	if p.TimeUsed >= quantum {
		p.MlfqLevel = clampLevel(p.MlfqLevel + 1)
		p.TimeUsed = 0
	}
	m.mu.Lock()
	m.queues[clampLevel(p.MlfqLevel)] = append(m.queues[clampLevel(p.MlfqLevel)], p)
	m.mu.Unlock()
}

// OnSleep does nothing: a sleeping process stays off every queue until
// OnWake re-admits it.
func (m *Mlfq) OnSleep(p *proc.Proc) {}

// OnWake promotes p one level (spec: "a process that sleeps ... is
// promoted one level on wake") and re-admits it to that queue.
func (m *Mlfq) OnWake(p *proc.Proc) {
	p.MlfqLevel = clampLevel(p.MlfqLevel - 1)
	p.TimeUsed = 0
	m.mu.Lock()
	m.queues[p.MlfqLevel] = append(m.queues[p.MlfqLevel], p)
	m.mu.Unlock()
}

// OnExit does nothing further: Select already popped p off its queue, and
// proc.Exit calls the table's Enqueuer.Dequeue defensively before this.
func (m *Mlfq) OnExit(p *proc.Proc) {}

// QueueLengths reports the current occupancy of each level, for the
// supplemental scheduler-stats report cmd/kernelsim bench prints
// (SPEC_FULL.md).
func (m *Mlfq) QueueLengths() [proc.MlfqNQ]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lens [proc.MlfqNQ]int
	for i, q := range m.queues {
		lens[i] = len(q)
	}
	return lens
}

// Reset empties every queue, used by the MLFQ stats-reset supplemental
// operation (SPEC_FULL.md) when restarting a measurement window.
func (m *Mlfq) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.queues {
		m.queues[i] = nil
	}
}
