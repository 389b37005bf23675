package mem

import "fmt"

// PTE models the one page-table entry the COW fault handler needs to
// inspect and mutate. Real page-table walking is an external collaborator
// per spec §1 ("the virtual-memory page-table walker"); AddressSpace below
// is the narrow contract this package invokes on it, in the spirit of the
// gopher-os vmm.walk()/pageFaultHandler split (see DESIGN.md).
type PTE struct {
	Frame    Frame
	Writable bool
	COW      bool
}

// AddressSpace is the contract a real page-table implementation must
// satisfy for COW fork and fault handling to work. It panics (at the call
// site, not inside this package) on violated invariants rather than
// exposing raw PTE words, per spec §9's design note on manual page-table
// management.
type AddressSpace interface {
	// Lookup returns the PTE mapping va, or ok=false if unmapped.
	Lookup(va uintptr) (PTE, bool)
	// SetWritable flips a PTE to writable in place without changing its
	// frame, used when a COW frame's refcount has dropped to one.
	SetWritable(va uintptr)
	// Remap installs a fresh writable, non-COW mapping for va pointing at
	// frame f, used when the fault handler had to clone.
	Remap(va uintptr, f Frame)
	// FlushTLB invalidates any cached translation for va on this CPU.
	FlushTLB(va uintptr)
	// Mappings returns every currently mapped (va, PTE) pair. Fork walks
	// the whole parent address space through this to establish COW
	// sharing (spec §4.7); nothing else in this package needs it.
	Mappings() []Mapping
	// MarkCOW installs a read-only, COW-tagged mapping for va pointing at
	// frame f, used both to downgrade a parent's own writable mapping and
	// to install the matching mapping in the child during fork.
	MarkCOW(va uintptr, f Frame)
}

// Mapping pairs a virtual address with the PTE currently installed there.
type Mapping struct {
	VA  uintptr
	PTE PTE
}

// ForkAddressSpace implements spec §4.7's fork-time COW setup: every
// mapping in parent is shared into child, frame refcounts are bumped once
// per shared mapping, and writable mappings are downgraded to read-only
// COW in both address spaces. Non-writable mappings are shared as COW too
// (harmless simplification: a subsequent write fault against one behaves
// like any other COW fault here, rather than needing a separate "genuine
// protection violation on an originally read-only page" path, since real
// permission bits beyond writable/not are an external collaborator's
// concern, spec §1).
func ForkAddressSpace(alloc *Allocator, parent, child AddressSpace) {
	for _, m := range parent.Mappings() {
		alloc.Incref(m.PTE.Frame)
		parent.MarkCOW(m.VA, m.PTE.Frame)
		child.MarkCOW(m.VA, m.PTE.Frame)
	}
}

// COWMode names eager and lazy fork-time materialization (spec §4.7's
// grow/shrink eager/lazy split has an analogue at fork time too, resolved
// as Open Question 6 in DESIGN.md: the mode never skips refcounting).
// Nothing takes a COWMode: ForkAddressSpace always shares every mapping
// copy-on-write, with one Incref per shared frame.
type COWMode int

const (
	COWEager COWMode = iota
	COWLazy
)

// HandleWriteFault implements spec §4.8. It is invoked by the (out of
// scope) trap handler when a user store instruction faults. A non-COW PTE
// means the fault is a genuine protection violation and is fatal to the
// faulting process's caller — that decision is made by the caller, not
// here, since what "fatal" means (kill vs. panic) depends on whether the
// fault originated from a user or supervisor access.
func HandleWriteFault(alloc *Allocator, as AddressSpace, va uintptr) error {
	pte, ok := as.Lookup(va)
	if !ok || !pte.COW {
		return fmt.Errorf("write fault at %#x on non-COW mapping", va)
	}
	if alloc.Refcount(pte.Frame) == 1 {
		as.SetWritable(va)
		as.FlushTLB(va)
		return nil
	}
	newFrame, ok := alloc.Alloc()
	if !ok {
		return fmt.Errorf("write fault at %#x: out of memory cloning frame", va)
	}
	copy(alloc.Bytes(newFrame), alloc.Bytes(pte.Frame))
	as.Remap(va, newFrame)
	alloc.Decref(pte.Frame)
	as.FlushTLB(va)
	return nil
}
