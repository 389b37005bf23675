package proc

import (
	"biscuit/defs"
	"biscuit/mem"
)

// TrapframeVA is the fixed ceiling the user region may grow up to before
// hitting the trampoline/trapframe mappings (original_source's TRAPFRAME),
// simplified here to one fixed constant since the real trampoline page
// layout is trap-vector machinery out of scope per spec §1.
const TrapframeVA = uintptr(1) << 38

func pageRound(sz uint64) uint64 {
	return (sz + defs.BlockSize - 1) / defs.BlockSize * defs.BlockSize
}

// Grow implements spec §4.7's grow/shrink: positive n extends the user
// region, eagerly mapping fresh frames or just updating Sz for the fault
// handler to populate lazily on first touch; negative n shrinks
// immediately, dropping a reference to (and possibly freeing, if COW
// sharing had kept it alive) every frame beyond the new size.
func Grow(p *Proc, alloc *mem.Allocator, n int64, eager bool) defs.Err_t {
	if n == 0 {
		return 0
	}
	sas, _ := p.AS.(*mem.SimAddressSpace)

	if n > 0 {
		newSz := p.Sz + uint64(n)
		if newSz > uint64(TrapframeVA) {
			return defs.ENOMEM
		}
		if eager && sas != nil {
			for va := pageRound(p.Sz); va < newSz; va += defs.BlockSize {
				f, ok := alloc.Alloc()
				if !ok {
					return defs.ENOMEM
				}
				sas.Map(uintptr(va), f, true)
			}
		}
		p.Sz = newSz
		if uint64(len(p.Mem)) < newSz {
			grown := make([]byte, newSz)
			copy(grown, p.Mem)
			p.Mem = grown
		}
		return 0
	}

	shrink := uint64(-n)
	if shrink > p.Sz {
		return defs.EINVAL
	}
	newSz := p.Sz - shrink
	if sas != nil {
		for va := pageRound(newSz); va < p.Sz; va += defs.BlockSize {
			if pte, ok := sas.Lookup(uintptr(va)); ok {
				alloc.Decref(pte.Frame)
				sas.Unmap(uintptr(va))
			}
		}
	}
	p.Sz = newSz
	if uint64(len(p.Mem)) > newSz {
		p.Mem = p.Mem[:newSz]
	}
	return 0
}
