package ksync

import "sync"

// Chan is a sleep channel token: an opaque value naming an event (spec
// glossary). Any comparable value works; by convention callers pass the
// address of the object being waited on, exactly as xv6 does.
type Chan any

type waiter struct {
	ready chan struct{}
}

var (
	regMu sync.Mutex
	reg   = map[Chan][]*waiter{}
)

// Sleep blocks the calling goroutine until Wakeup(ch) is called. The
// caller must hold lock; Sleep registers the wait atomically with respect
// to lock still being held, then releases it, blocks, and reacquires it
// before returning — the same three-step contract as spec §4.5's
// sleep(chan, lock). Registering the waiter before releasing lock is what
// gives lost-wakeup freedom: any goroutine that intends to call
// Wakeup(ch) must itself acquire lock first (by convention of every
// derived primitive in this package), so it cannot run between
// registration and release.
func Sleep(ch Chan, lock sync.Locker) {
	w := &waiter{ready: make(chan struct{})}
	regMu.Lock()
	reg[ch] = append(reg[ch], w)
	regMu.Unlock()

	lock.Unlock()
	<-w.ready
	lock.Lock()
}

// Wakeup makes every current sleeper on ch runnable again. Consistent
// with sync_primitives.c, where both cond_signal and cond_broadcast call
// wakeup (which always wakes every waiter) — see DESIGN.md's Open
// Question 2 decision.
func Wakeup(ch Chan) {
	regMu.Lock()
	ws := reg[ch]
	delete(reg, ch)
	regMu.Unlock()
	for _, w := range ws {
		close(w.ready)
	}
}

// NumSleepers reports how many goroutines are currently asleep on ch; used
// by tests asserting that a wakeup actually ran all waiters.
func NumSleepers(ch Chan) int {
	regMu.Lock()
	defer regMu.Unlock()
	return len(reg[ch])
}
