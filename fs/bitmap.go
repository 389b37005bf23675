package fs

// balloc finds the first free data block in the free-block bitmap, marks
// it used, zeroes its contents, and returns its block number. Returns
// ok=false when the device is full.
func (f *FS) balloc() (uint32, bool) {
	for b := uint32(0); b < f.Sb.NBlocks; b += f.Sb.BPB() {
		bitblock := f.Sb.BBlock(b)
		buf, err := f.Cache.Get(f.Dev, int(bitblock))
		if err != 0 {
			return 0, false
		}
		limit := b + f.Sb.BPB()
		if limit > f.Sb.NBlocks {
			limit = f.Sb.NBlocks
		}
		for bi := b; bi < limit; bi++ {
			byteIdx := (bi - b) / 8
			bitIdx := (bi - b) % 8
			mask := byte(1) << bitIdx
			if buf.Data[byteIdx]&mask == 0 {
				buf.Data[byteIdx] |= mask
				buf.MarkDirty()
				f.Log.Write(int(bitblock), buf.Data[:])
				f.Cache.Release(buf)

				dataBlock := f.Sb.DataStart + bi
				zb, zerr := f.Cache.Get(f.Dev, int(dataBlock))
				if zerr == 0 {
					for i := range zb.Data {
						zb.Data[i] = 0
					}
					zb.MarkDirty()
					f.Log.Write(int(dataBlock), zb.Data[:])
					f.Cache.Release(zb)
				}
				return dataBlock, true
			}
		}
		f.Cache.Release(buf)
	}
	return 0, false
}

// bfree clears block's bit in the free-block bitmap. Freeing an
// already-free block is an invariant violation and panics (spec §7:
// "freeing a free block ... are fatal and panic the kernel").
func (f *FS) bfree(block uint32) {
	bi := block - f.Sb.DataStart
	bitblock := f.Sb.BBlock(bi)
	buf, err := f.Cache.Get(f.Dev, int(bitblock))
	if err != 0 {
		panic("fs: bfree: cannot read bitmap block")
	}
	byteIdx := (bi % f.Sb.BPB()) / 8
	bitIdx := (bi % f.Sb.BPB()) % 8
	mask := byte(1) << bitIdx
	if buf.Data[byteIdx]&mask == 0 {
		f.Cache.Release(buf)
		panic("fs: bfree: freeing already-free block")
	}
	buf.Data[byteIdx] &^= mask
	buf.MarkDirty()
	f.Log.Write(int(bitblock), buf.Data[:])
	f.Cache.Release(buf)
}
