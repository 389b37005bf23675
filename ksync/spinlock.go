// Package ksync implements the synchronization layer of spec §4.5: spin
// locks with nested interrupt-disable counting, sleep locks, the
// sleep/wakeup primitive every higher-level wait builds on, and the
// derived semaphore/mutex/condition-variable/readers-writer pools.
// Grounded on original_source/xv6-riscv-riscv/kernel/sync_primitives.c for
// the derived primitives and on spinlock/proc.h's push_off/pop_off nesting
// for Cpu. Per spec §9's design note on coroutine-like control flow, the
// sleep/wakeup primitive here is expressed as message passing on a
// registry of per-channel Go channels rather than a hand-rolled context
// switch, since Go's goroutines already provide the underlying
// suspension mechanism.
package ksync

import (
	"fmt"
	"sync"
)

// Cpu is the per-core bookkeeping spec §3 calls out: the nested
// interrupt-disable depth and the interrupt-enabled state that held
// before the first nested acquisition. A real trap-vector implementation
// would read/write the actual interrupt-enable flag here; that is an
// external collaborator (spec §1), so this only tracks the nesting
// invariant for correctness assertions.
type Cpu struct {
	Noff        int
	intEnaSaved bool
}

// Spinlock is a test-and-set lock that disables interrupts (conceptually,
// via Cpu's nesting counter) for as long as it or any nested spinlock is
// held. Acquiring a lock already held by the same CPU is fatal (spec
// §4.5). Spinlocks must never bracket a suspension point (spec §5); they
// are deliberately not accepted by Sleep.
type Spinlock struct {
	mu     sync.Mutex
	name   string
	holder *Cpu
}

// NewSpinlock names a lock for debug output, matching the teacher's
// convention of naming every lock at init time.
func NewSpinlock(name string) *Spinlock {
	return &Spinlock{name: name}
}

func pushOff(c *Cpu) {
	if c.Noff == 0 {
		c.intEnaSaved = true
	}
	c.Noff++
}

func popOff(c *Cpu) {
	if c.Noff < 1 {
		panic("ksync: pop_off without matching push_off")
	}
	c.Noff--
	if c.Noff == 0 {
		_ = c.intEnaSaved // would re-enable interrupts on real hardware here
	}
}

// Acquire blocks until the lock is free, then takes it, incrementing c's
// disable-interrupt nesting depth first (so the depth is correct even if
// this call blocks).
func (l *Spinlock) Acquire(c *Cpu) {
	pushOff(c)
	if l.holder == c {
		panic(fmt.Sprintf("ksync: %s: acquire of already-held lock on same cpu", l.name))
	}
	l.mu.Lock()
	l.holder = c
}

// Release gives up the lock and decrements c's nesting depth.
func (l *Spinlock) Release(c *Cpu) {
	if l.holder != c {
		panic(fmt.Sprintf("ksync: %s: release by non-holder", l.name))
	}
	l.holder = nil
	l.mu.Unlock()
	popOff(c)
}

// Holding reports whether c currently holds the lock; used by assertions
// such as "must hold the PCB lock to mutate state".
func (l *Spinlock) Holding(c *Cpu) bool {
	return l.holder == c
}

func (l *Spinlock) Name() string { return l.name }
