package ksync

import "sync"

// The semaphore/mutex/condition/rwlock pools below are grounded directly
// on original_source/xv6-riscv-riscv/kernel/sync_primitives.c: each
// category is a fixed-size array indexed by a small integer id, every
// operation validates the id range and returns -1 on a bad id or a
// non-owner unlock, exactly as the source does (spec §4.5: "operations
// return zero or a negative error").

const (
	NSem    = 32
	NMutex  = 32
	NCond   = 32
	NRWLock = 32
)

type semaphore struct {
	mu    sync.Mutex
	value int
}

type SemPool struct {
	sems [NSem]*semaphore
}

func NewSemPool() *SemPool {
	p := &SemPool{}
	for i := range p.sems {
		p.sems[i] = &semaphore{}
	}
	return p
}

func (p *SemPool) Init(id, initial int) int {
	if id < 0 || id >= NSem {
		return -1
	}
	s := p.sems[id]
	s.mu.Lock()
	s.value = initial
	s.mu.Unlock()
	return 0
}

// Wait blocks while the semaphore's value is zero, then claims one unit.
func (p *SemPool) Wait(id int) int {
	if id < 0 || id >= NSem {
		return -1
	}
	s := p.sems[id]
	s.mu.Lock()
	for s.value <= 0 {
		Sleep(s, &s.mu)
	}
	s.value--
	s.mu.Unlock()
	return 0
}

// Post releases one unit and wakes any waiter.
func (p *SemPool) Post(id int) int {
	if id < 0 || id >= NSem {
		return -1
	}
	s := p.sems[id]
	s.mu.Lock()
	s.value++
	s.mu.Unlock()
	Wakeup(s)
	return 0
}

type mutexSlot struct {
	mu     sync.Mutex
	locked bool
	owner  int // opaque owner token, 0 means none; callers pass their own id
}

type MutexPool struct {
	slots [NMutex]*mutexSlot
}

func NewMutexPool() *MutexPool {
	p := &MutexPool{}
	for i := range p.slots {
		p.slots[i] = &mutexSlot{}
	}
	return p
}

func (p *MutexPool) Init(id int) int {
	if id < 0 || id >= NMutex {
		return -1
	}
	m := p.slots[id]
	m.mu.Lock()
	m.locked = false
	m.owner = 0
	m.mu.Unlock()
	return 0
}

func (p *MutexPool) Lock(id, who int) int {
	if id < 0 || id >= NMutex {
		return -1
	}
	m := p.slots[id]
	m.mu.Lock()
	for m.locked && m.owner != who {
		Sleep(m, &m.mu)
	}
	m.locked = true
	m.owner = who
	m.mu.Unlock()
	return 0
}

func (p *MutexPool) Unlock(id, who int) int {
	if id < 0 || id >= NMutex {
		return -1
	}
	m := p.slots[id]
	m.mu.Lock()
	if m.owner != who {
		m.mu.Unlock()
		return -1
	}
	m.locked = false
	m.owner = 0
	m.mu.Unlock()
	Wakeup(m)
	return 0
}

type condSlot struct {
	mu      sync.Mutex
	waiters int
}

type CondPool struct {
	slots [NCond]*condSlot
}

func NewCondPool() *CondPool {
	p := &CondPool{}
	for i := range p.slots {
		p.slots[i] = &condSlot{}
	}
	return p
}

func (p *CondPool) Init(id int) int {
	if id < 0 || id >= NCond {
		return -1
	}
	p.slots[id].waiters = 0
	return 0
}

// Wait atomically drops mutexID, sleeps on the condition, then reacquires
// mutexID before returning (the paired-mutex contract of spec §4.5).
func (p *CondPool) Wait(id int, mutexes *MutexPool, mutexID, who int) int {
	if id < 0 || id >= NCond {
		return -1
	}
	c := p.slots[id]
	c.mu.Lock()
	c.waiters++
	mutexes.Unlock(mutexID, who)
	Sleep(c, &c.mu)
	c.waiters--
	c.mu.Unlock()
	mutexes.Lock(mutexID, who)
	return 0
}

// Signal and Broadcast are equivalent here: both call Wakeup, which wakes
// every sleeper on the channel, matching sync_primitives.c's cond_signal
// and cond_broadcast (DESIGN.md Open Question 2).
func (p *CondPool) Signal(id int) int {
	if id < 0 || id >= NCond {
		return -1
	}
	c := p.slots[id]
	c.mu.Lock()
	hasWaiters := c.waiters > 0
	c.mu.Unlock()
	if hasWaiters {
		Wakeup(c)
	}
	return 0
}

func (p *CondPool) Broadcast(id int) int {
	return p.Signal(id)
}

type rwlockSlot struct {
	mu      sync.Mutex
	readers int
	writer  bool
	owner   int
}

// RWLockPool implements spec §4.5's readers/writer lock. Writer
// starvation is allowed by design (DESIGN.md Open Question 3): a reader
// only checks for an active writer, never for queued writers.
type RWLockPool struct {
	slots [NRWLock]*rwlockSlot
}

func NewRWLockPool() *RWLockPool {
	p := &RWLockPool{}
	for i := range p.slots {
		p.slots[i] = &rwlockSlot{}
	}
	return p
}

func (p *RWLockPool) Init(id int) int {
	if id < 0 || id >= NRWLock {
		return -1
	}
	s := p.slots[id]
	s.readers = 0
	s.writer = false
	return 0
}

func (p *RWLockPool) RLock(id int) int {
	if id < 0 || id >= NRWLock {
		return -1
	}
	s := p.slots[id]
	s.mu.Lock()
	for s.writer {
		Sleep(s, &s.mu)
	}
	s.readers++
	s.mu.Unlock()
	return 0
}

func (p *RWLockPool) RUnlock(id int) int {
	if id < 0 || id >= NRWLock {
		return -1
	}
	s := p.slots[id]
	s.mu.Lock()
	s.readers--
	wake := s.readers == 0
	s.mu.Unlock()
	if wake {
		Wakeup(s)
	}
	return 0
}

func (p *RWLockPool) WLock(id, who int) int {
	if id < 0 || id >= NRWLock {
		return -1
	}
	s := p.slots[id]
	s.mu.Lock()
	for s.writer || s.readers > 0 {
		Sleep(s, &s.mu)
	}
	s.writer = true
	s.owner = who
	s.mu.Unlock()
	return 0
}

func (p *RWLockPool) WUnlock(id, who int) int {
	if id < 0 || id >= NRWLock {
		return -1
	}
	s := p.slots[id]
	s.mu.Lock()
	if s.owner != who {
		s.mu.Unlock()
		return -1
	}
	s.writer = false
	s.owner = 0
	s.mu.Unlock()
	Wakeup(s)
	return 0
}
