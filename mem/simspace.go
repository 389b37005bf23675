package mem

import "sort"

// SimAddressSpace is a host-simulated AddressSpace: a plain map from
// virtual address to PTE guarded by a mutex-free single-threaded-access
// contract matching the rest of this package (callers serialize access to
// one address space the way one process serializes access to its own page
// table). It stands in for the real RISC-V Sv39 page-table walker, out of
// scope per spec §1.
type SimAddressSpace struct {
	pages map[uintptr]PTE
}

func NewSimAddressSpace() *SimAddressSpace {
	return &SimAddressSpace{pages: map[uintptr]PTE{}}
}

func (s *SimAddressSpace) Lookup(va uintptr) (PTE, bool) {
	pte, ok := s.pages[va]
	return pte, ok
}

func (s *SimAddressSpace) SetWritable(va uintptr) {
	pte := s.pages[va]
	pte.Writable = true
	pte.COW = false
	s.pages[va] = pte
}

func (s *SimAddressSpace) Remap(va uintptr, f Frame) {
	s.pages[va] = PTE{Frame: f, Writable: true, COW: false}
}

func (s *SimAddressSpace) FlushTLB(va uintptr) {}

func (s *SimAddressSpace) MarkCOW(va uintptr, f Frame) {
	s.pages[va] = PTE{Frame: f, Writable: false, COW: true}
}

// Map installs an arbitrary mapping directly, used by test setup and by
// grow/shrink to install freshly allocated frames.
func (s *SimAddressSpace) Map(va uintptr, f Frame, writable bool) {
	s.pages[va] = PTE{Frame: f, Writable: writable}
}

// Unmap removes va's mapping entirely, used by shrink.
func (s *SimAddressSpace) Unmap(va uintptr) {
	delete(s.pages, va)
}

func (s *SimAddressSpace) Mappings() []Mapping {
	out := make([]Mapping, 0, len(s.pages))
	for va, pte := range s.pages {
		out = append(out, Mapping{VA: va, PTE: pte})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VA < out[j].VA })
	return out
}
