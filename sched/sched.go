// Package sched implements the pluggable scheduler framework of spec
// §4.6: a tagged-variant selector (round-robin, priority, or MLFQ —
// DESIGN.md's redesign-flag decision replaces the original's mutable
// function pointer with a swappable interface value, since a bare func
// pointer shared across goroutines is exactly the kind of ambient mutable
// state idiomatic Go avoids) plus the per-CPU scheduling loop that drives
// it. Grounded on original_source/xv6-riscv-riscv/kernel/proc.c's
// scheduler() loop and biscuit's sched_add/sched_run naming.
package sched

import (
	"sync"
	"sync/atomic"

	"biscuit/proc"
)

// Kind names which shipped selector is active, for diagnostics and for
// set_scheduler's syscall argument (spec §6).
type Kind int

const (
	KindRoundRobin Kind = iota
	KindPriority
	KindMlfq
)

func (k Kind) String() string {
	switch k {
	case KindRoundRobin:
		return "round-robin"
	case KindPriority:
		return "priority"
	case KindMlfq:
		return "mlfq"
	default:
		return "unknown"
	}
}

// Selector is the contract spec §4.6 describes: "returns a runnable
// process or none; must not retain locks; must not mutate process state."
// The On* hooks let a selector react to the state transitions the
// scheduling loop performs after a Select — round-robin and priority (pure
// table scans) no-op them; Mlfq uses them to maintain its queues.
type Selector interface {
	Kind() Kind
	// Select picks a runnable process to run next and removes it from
	// whatever internal queue tracked it as runnable (the selector's own
	// notion of "dequeued" — spec's "processes must be ... dequeued on
	// exit and on every state transition"; popping at selection time is
	// equivalent to dequeuing at the yield/sleep/exit boundary since the
	// process is never an eligible candidate again until re-enqueued).
	// Returns nil if nothing is runnable.
	Select(cpu *proc.Cpu) *proc.Proc
	OnYield(p *proc.Proc)
	OnSleep(p *proc.Proc)
	OnWake(p *proc.Proc)
	OnExit(p *proc.Proc)
}

// RunResult is what the caller-supplied run function reports back after
// Scheduler.Step hands it a running process.
type RunResult int

const (
	RunYielded RunResult = iota
	RunSlept
	RunExited
)

// RunFunc executes one scheduling quantum's worth of a process's work and
// reports how it left the CPU. The real trap/syscall path that would
// decide this is out of scope (spec §1); tests and cmd/kernelsim supply
// their own.
type RunFunc func(p *proc.Proc) RunResult

// Scheduler drives one logical kernel's worth of CPUs against a single
// active Selector, swappable at runtime (spec's "process-wide function
// pointer mutable at runtime", realized here as a mutex-guarded interface
// value instead).
type Scheduler struct {
	mu     sync.Mutex
	active Selector

	totalSwitches int64
	idleSteps     int64
	runSteps      int64
}

func NewScheduler(initial Selector) *Scheduler {
	return &Scheduler{active: initial}
}

// SetSelector swaps the active selector. Spec requires no drain or
// handoff protocol beyond this: the old selector simply stops being
// consulted; in-flight processes already marked Running are unaffected.
func (s *Scheduler) SetSelector(sel Selector) {
	s.mu.Lock()
	s.active = sel
	s.mu.Unlock()
}

func (s *Scheduler) Active() Selector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Step implements one iteration of spec §4.6's per-CPU loop body: consult
// the active selector, and if it returns a candidate, take its lock,
// re-verify it is runnable (the selector's pick is a best-effort snapshot,
// per its own contract), mark it running, hand it to run, then apply the
// resulting state transition. Returns false if nothing was runnable (the
// spec's "the CPU waits for an interrupt" case — modeled here as simply
// not running anything this step).
func (s *Scheduler) Step(cpu *proc.Cpu, run RunFunc) bool {
	sel := s.Active()
	p := sel.Select(cpu)
	if p == nil {
		atomic.AddInt64(&s.idleSteps, 1)
		return false
	}

	p.Lock.Acquire(cpu.Cpu)
	if p.State != proc.Runnable {
		p.Lock.Release(cpu.Cpu)
		return false
	}
	p.State = proc.Running
	cpu.Proc = p
	p.Lock.Release(cpu.Cpu)

	result := run(p)

	p.Lock.Acquire(cpu.Cpu)
	cpu.Proc = nil
	switch result {
	case RunYielded:
		p.State = proc.Runnable
		sel.OnYield(p)
	case RunSlept:
		p.State = proc.Sleeping
		sel.OnSleep(p)
	case RunExited:
		sel.OnExit(p)
	}
	p.Lock.Release(cpu.Cpu)

	atomic.AddInt64(&s.totalSwitches, 1)
	atomic.AddInt64(&s.runSteps, 1)
	return true
}

// Enqueuer exposes the active selector as a proc.Enqueuer when it is one
// (only Mlfq maintains explicit admission queues; round-robin and priority
// just rescan the table, so they return ok=false and Fork/Exit skip the
// call entirely).
func (s *Scheduler) Enqueuer() (proc.Enqueuer, bool) {
	eq, ok := s.Active().(proc.Enqueuer)
	return eq, ok
}

// Wake transitions p from Sleeping to Runnable and lets the active
// selector re-admit it (MLFQ's level-promotion-on-wake, spec §4.6). Used
// by whatever woke p up through ksync.Wakeup/Sleep (itself selector-
// agnostic) to also fix up the scheduler's bookkeeping. A no-op if p was
// not actually sleeping (e.g. Kill raced a wake that already happened).
func (s *Scheduler) Wake(cpu *proc.Cpu, p *proc.Proc) {
	p.Lock.Acquire(cpu.Cpu)
	wasSleeping := p.State == proc.Sleeping
	if wasSleeping {
		p.State = proc.Runnable
	}
	p.Lock.Release(cpu.Cpu)
	if wasSleeping {
		s.Active().OnWake(p)
	}
}

// Stats reports the scheduler-wide counters spec's supplemental metrics
// wiring exposes through Prometheus (SPEC_FULL.md's DOMAIN STACK): total
// context switches performed, steps where nothing was runnable, and steps
// that ran a process.
func (s *Scheduler) Stats() (totalSwitches, idleSteps, runSteps int64) {
	return atomic.LoadInt64(&s.totalSwitches), atomic.LoadInt64(&s.idleSteps), atomic.LoadInt64(&s.runSteps)
}

// ResetStats zeroes the counters; used by the mlfq-reset
// supplemental operation (SPEC_FULL.md) when a fresh measurement window
// starts.
func (s *Scheduler) ResetStats() {
	atomic.StoreInt64(&s.totalSwitches, 0)
	atomic.StoreInt64(&s.idleSteps, 0)
	atomic.StoreInt64(&s.runSteps, 0)
}
