package proc

import "biscuit/defs"

// MaxStr bounds CopyInStr the way the original's fetchstr bounds a single
// copied string, so a missing NUL terminator cannot run unbounded.
const MaxStr = 4096

// CopyInStr reads a NUL-terminated string starting at user virtual address
// va out of p's simulated user memory (see Proc.Mem's doc comment). Returns
// EFAULT if va is out of range or no terminator is found within MaxStr.
func CopyInStr(p *Proc, va uintptr) (string, defs.Err_t) {
	if va >= uintptr(len(p.Mem)) {
		return "", defs.EFAULT
	}
	end := int(va) + MaxStr
	if end > len(p.Mem) {
		end = len(p.Mem)
	}
	for i := int(va); i < end; i++ {
		if p.Mem[i] == 0 {
			return string(p.Mem[va:i]), 0
		}
	}
	return "", defs.EFAULT
}

// CopyIn reads n bytes starting at user virtual address va.
func CopyIn(p *Proc, va uintptr, n int) ([]byte, defs.Err_t) {
	if n < 0 {
		return nil, defs.EINVAL
	}
	end := int(va) + n
	if va >= uintptr(len(p.Mem)) || end > len(p.Mem) || end < int(va) {
		return nil, defs.EFAULT
	}
	buf := make([]byte, n)
	copy(buf, p.Mem[va:end])
	return buf, 0
}

// CopyOut writes data into user memory starting at virtual address va.
func CopyOut(p *Proc, va uintptr, data []byte) defs.Err_t {
	end := int(va) + len(data)
	if va >= uintptr(len(p.Mem)) || end > len(p.Mem) || end < int(va) {
		return defs.EFAULT
	}
	copy(p.Mem[va:end], data)
	return 0
}
