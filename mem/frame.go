// Package mem implements the physical frame allocator described in spec
// §4.1: a fixed pool of 4KB frames, a free list, and a parallel refcount
// array that makes copy-on-write sharing possible. Grounded on
// original_source/xv6-riscv-riscv/kernel/kalloc.c (kinit/kalloc/kfree plus
// the krefpage/kunrefpage COW refcounting extension) and on the teacher's
// refup/refdown/refpg_new_nozero naming in main.go.
package mem

import (
	"fmt"
	"sync"
)

// poisonByte fills a freshly allocated frame so that use of uninitialized
// memory is visible during debugging, matching kalloc's historical 0x5a
// fill pattern.
const poisonByte = 0x5a

// Allocator owns every physical frame above the kernel image. A single
// mutex guards both the free list and the refcount array, matching spec
// §4.1 ("All mutate a global free list and a parallel reference-count
// array ... both guarded by a single lock").
type Allocator struct {
	mu       sync.Mutex
	frameSz  int
	refcount []int32
	free     []bool // free[i] true iff frame i is on the free list
	freelist []int  // stack of free frame indices, LIFO like a run-list
	data     [][]byte
}

// NewAllocator builds an allocator owning nframes frames, each frameSz
// bytes (normally defs.BlockSize). All frames start on the free list.
func NewAllocator(nframes, frameSz int) *Allocator {
	a := &Allocator{
		frameSz:  frameSz,
		refcount: make([]int32, nframes),
		free:     make([]bool, nframes),
		data:     make([][]byte, nframes),
	}
	for i := 0; i < nframes; i++ {
		a.data[i] = make([]byte, frameSz)
		a.free[i] = true
		a.freelist = append(a.freelist, i)
	}
	return a
}

// Frame identifies one physical frame by its index into the allocator's
// backing arrays. It stands in for a physical address (spec's Pa_t) since
// the host simulation has no real physical memory to address.
type Frame int

// Alloc removes a frame from the free list, sets its refcount to one, and
// fills its contents with the poison byte. Returns ok=false on exhaustion
// (spec: "alloc() -> Frame | OOM").
func (a *Allocator) Alloc() (Frame, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.freelist) == 0 {
		return 0, false
	}
	idx := a.freelist[len(a.freelist)-1]
	a.freelist = a.freelist[:len(a.freelist)-1]
	a.free[idx] = false
	a.refcount[idx] = 1
	for i := range a.data[idx] {
		a.data[idx][i] = poisonByte
	}
	return Frame(idx), true
}

// Free returns a frame to the free list unconditionally. It is fatal to
// free an already-free frame or an out-of-range frame, matching spec
// §4.1 ("free rejects unaligned or out-of-range addresses (fatal)").
func (a *Allocator) Free(f Frame) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freeLocked(f)
}

func (a *Allocator) freeLocked(f Frame) {
	idx := int(f)
	if idx < 0 || idx >= len(a.data) {
		panic(fmt.Sprintf("mem: free of out-of-range frame %d", idx))
	}
	if a.free[idx] {
		panic(fmt.Sprintf("mem: double free of frame %d", idx))
	}
	a.refcount[idx] = 0
	a.free[idx] = true
	for i := range a.data[idx] {
		a.data[idx][i] = poisonByte
	}
	a.freelist = append(a.freelist, idx)
}

// Incref bumps a frame's refcount by one. Every stored live mapping
// (including a COW-shared mapping duplicated across fork) must be matched
// by exactly one Incref.
func (a *Allocator) Incref(f Frame) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := int(f)
	if a.free[idx] {
		panic("mem: incref of free frame")
	}
	a.refcount[idx]++
}

// Decref drops a frame's refcount by one, freeing it when the count
// reaches zero, and returns whether it did so. Observing a pre-decrement
// count below one is an invariant violation and is fatal.
func (a *Allocator) Decref(f Frame) (freed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := int(f)
	if a.refcount[idx] < 1 {
		panic(fmt.Sprintf("mem: decref of frame %d with refcount %d", idx, a.refcount[idx]))
	}
	a.refcount[idx]--
	if a.refcount[idx] == 0 {
		a.freeLocked(f)
		return true
	}
	return false
}

// Refcount reports a frame's current reference count.
func (a *Allocator) Refcount(f Frame) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.refcount[int(f)])
}

// Bytes returns the backing storage for a frame. Callers must only read or
// write through this slice while holding whatever lock protects the
// mapping that owns the frame (e.g. the owning inode's sleeplock, or the
// calling process's pagetable lock) — the allocator itself does not
// serialize content access, only bookkeeping.
func (a *Allocator) Bytes(f Frame) []byte {
	return a.data[int(f)]
}

// Stats reports (free frame count, total frame count) for the frame
// conservation invariant of spec §8: free + sum(live refcounts) == total.
func (a *Allocator) Stats() (freeFrames, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.freelist), len(a.data)
}

// LiveRefSum sums the refcounts of every allocated frame; used by tests to
// assert frame conservation alongside Stats.
func (a *Allocator) LiveRefSum() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	sum := 0
	for i, f := range a.free {
		if !f {
			sum += int(a.refcount[i])
		}
	}
	return sum
}
