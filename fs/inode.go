package fs

import (
	"encoding/binary"

	"biscuit/defs"
	"biscuit/ksync"
)

// Inode is the in-memory handle described in spec §3: a superset of the
// on-disk dinode plus a table reference count and a valid/loaded flag.
// Fields other than ref, dev, and inum require holding lock.
type Inode struct {
	fs   *FS
	dev  defs.Dev_t
	inum uint32

	ref   int
	valid bool
	lock  *ksync.SleepLock

	dinode Dinode
}

func (ip *Inode) Inum() uint32         { return ip.inum }
func (ip *Inode) Type() defs.Itype_t   { return ip.dinode.Type }
func (ip *Inode) Nlink() uint16        { return ip.dinode.Nlink }
func (ip *Inode) Size() uint32         { return ip.dinode.Size }
func (ip *Inode) Major() uint16        { return ip.dinode.Major }
func (ip *Inode) Minor() uint16        { return ip.dinode.Minor }

// Alloc scans the inode table for a free dinode slot, writes a new dinode
// of the given type with default metadata, and returns a referenced (not
// locked) handle. Must run within a transaction (spec §4.3).
func (f *FS) Alloc(itype defs.Itype_t) (*Inode, defs.Err_t) {
	if itype == defs.ItypeFree {
		return nil, defs.EINVAL
	}
	for inum := uint32(1); inum < f.Sb.NInodes; inum++ {
		blockno := f.Sb.IBlock(inum)
		b, err := f.Cache.Get(f.Dev, int(blockno))
		if err != 0 {
			return nil, err
		}
		off := (inum % f.Sb.IPB()) * DinodeSize
		d := DecodeDinode(b.Data[off : off+DinodeSize])
		if d.Type == defs.ItypeFree {
			d = Dinode{Type: itype, Nlink: 1, Mode: 0o644}
			d.Encode(b.Data[off : off+DinodeSize])
			b.MarkDirty()
			f.Log.Write(int(blockno), b.Data[:])
			f.Cache.Release(b)
			return f.Get(inum), 0
		}
		f.Cache.Release(b)
	}
	return nil, defs.ENFILE
}

// Get returns an in-memory handle with ref incremented; it does not read
// from disk (spec §4.3).
func (f *FS) Get(inum uint32) *Inode {
	f.itableMu.Lock()
	defer f.itableMu.Unlock()

	var empty *Inode
	for _, ip := range f.itable {
		if ip.ref > 0 && ip.dev == f.Dev && ip.inum == inum {
			ip.ref++
			return ip
		}
		if empty == nil && ip.ref == 0 {
			empty = ip
		}
	}
	if empty == nil {
		panic("fs: inode table exhausted")
	}
	empty.dev = f.Dev
	empty.inum = inum
	empty.ref = 1
	empty.valid = false
	return empty
}

// Lock acquires ip's sleep lock and lazily loads the dinode from disk on
// first use. A freshly loaded free-type dinode is left as-is: callers
// that require a live inode (namex, reclaimOrphans' non-orphans) check
// the type themselves, since the mount-time orphan scan must be able to
// lock every slot including free ones (spec §4.3).
func (f *FS) Lock(ip *Inode) {
	ip.lock.Acquire()
	if !ip.valid {
		blockno := f.Sb.IBlock(ip.inum)
		b, err := f.Cache.Get(f.Dev, int(blockno))
		if err != 0 {
			panic("fs: failed to read dinode block")
		}
		off := (ip.inum % f.Sb.IPB()) * DinodeSize
		ip.dinode = DecodeDinode(b.Data[off : off+DinodeSize])
		f.Cache.Release(b)
		ip.valid = true
	}
}

// Unlock releases ip's sleep lock.
func (f *FS) Unlock(ip *Inode) {
	ip.lock.Release()
}

// iupdate writes ip's in-memory dinode back to its disk block; caller
// must be inside a transaction and hold ip's lock.
func (f *FS) iupdate(ip *Inode) {
	blockno := f.Sb.IBlock(ip.inum)
	b, err := f.Cache.Get(f.Dev, int(blockno))
	if err != 0 {
		panic("fs: iupdate read failed")
	}
	off := (ip.inum % f.Sb.IPB()) * DinodeSize
	ip.dinode.Encode(b.Data[off : off+DinodeSize])
	b.MarkDirty()
	f.Log.Write(int(blockno), b.Data[:])
	f.Cache.Release(b)
}

// Put drops one reference to ip. Releasing the last reference to an
// inode whose nlink == 0 truncates and frees it on disk, within the
// caller's enclosing transaction (spec §3, §4.3).
func (f *FS) Put(ip *Inode) {
	f.itableMu.Lock()
	if ip.ref == 1 && ip.valid && ip.dinode.Nlink == 0 {
		f.itableMu.Unlock()
		f.Lock(ip)
		f.itruncate(ip)
		ip.dinode.Type = defs.ItypeFree
		f.iupdate(ip)
		f.Unlock(ip)
		f.itableMu.Lock()
	}
	ip.ref--
	f.itableMu.Unlock()
}

// --- block mapping ---

// bmap returns the disk block number backing logical block bn of ip,
// allocating intermediate and leaf blocks as needed on a write, or
// returning 0 ("hole") when a block is missing on a read. Partially
// allocated intermediate blocks on an allocation failure are kept rather
// than rolled back (spec §4.3: "leaks are tolerated over rollback
// complexity").
func (f *FS) bmap(ip *Inode, bn uint32, alloc bool) uint32 {
	if bn < NDirect {
		if ip.dinode.Addrs[bn] == 0 && alloc {
			blk, ok := f.balloc()
			if !ok {
				return 0
			}
			ip.dinode.Addrs[bn] = blk
		}
		return ip.dinode.Addrs[bn]
	}
	bn -= NDirect
	if bn < NIndirPtr {
		return f.bmapIndirect(ip, singleIndirect, bn, alloc)
	}
	bn -= NIndirPtr
	if bn < NIndirPtr*NIndirPtr {
		return f.bmapDouble(ip, doubleIndirect, bn, alloc)
	}
	bn -= NIndirPtr * NIndirPtr
	if bn < NIndirPtr*NIndirPtr*NIndirPtr {
		return f.bmapTriple(ip, tripleIndirect, bn, alloc)
	}
	return 0
}

func (f *FS) readIndirectEntry(blockno uint32, idx uint32) uint32 {
	b, err := f.Cache.Get(f.Dev, int(blockno))
	if err != 0 {
		return 0
	}
	v := binary.LittleEndian.Uint32(b.Data[idx*4:])
	f.Cache.Release(b)
	return v
}

func (f *FS) writeIndirectEntry(blockno uint32, idx uint32, val uint32) {
	b, err := f.Cache.Get(f.Dev, int(blockno))
	if err != 0 {
		panic("fs: indirect block read failed")
	}
	binary.LittleEndian.PutUint32(b.Data[idx*4:], val)
	b.MarkDirty()
	f.Log.Write(int(blockno), b.Data[:])
	f.Cache.Release(b)
}

// bmapIndirect resolves one level of single indirection, lazily
// allocating the indirect block and/or leaf block on write.
func (f *FS) bmapIndirect(ip *Inode, slot int, idx uint32, alloc bool) uint32 {
	indBlock := ip.dinode.Addrs[slot]
	if indBlock == 0 {
		if !alloc {
			return 0
		}
		blk, ok := f.balloc()
		if !ok {
			return 0
		}
		ip.dinode.Addrs[slot] = blk
		indBlock = blk
	}
	leaf := f.readIndirectEntry(indBlock, idx)
	if leaf == 0 && alloc {
		blk, ok := f.balloc()
		if !ok {
			return 0
		}
		f.writeIndirectEntry(indBlock, idx, blk)
		leaf = blk
	}
	return leaf
}

func (f *FS) bmapDouble(ip *Inode, slot int, idx uint32, alloc bool) uint32 {
	outer := idx / NIndirPtr
	inner := idx % NIndirPtr
	l1Block := ip.dinode.Addrs[slot]
	if l1Block == 0 {
		if !alloc {
			return 0
		}
		blk, ok := f.balloc()
		if !ok {
			return 0
		}
		ip.dinode.Addrs[slot] = blk
		l1Block = blk
	}
	l2Block := f.readIndirectEntry(l1Block, outer)
	if l2Block == 0 {
		if !alloc {
			return 0
		}
		blk, ok := f.balloc()
		if !ok {
			return 0
		}
		f.writeIndirectEntry(l1Block, outer, blk)
		l2Block = blk
	}
	leaf := f.readIndirectEntry(l2Block, inner)
	if leaf == 0 && alloc {
		blk, ok := f.balloc()
		if !ok {
			return 0
		}
		f.writeIndirectEntry(l2Block, inner, blk)
		leaf = blk
	}
	return leaf
}

func (f *FS) bmapTriple(ip *Inode, slot int, idx uint32, alloc bool) uint32 {
	outer := idx / (NIndirPtr * NIndirPtr)
	rem := idx % (NIndirPtr * NIndirPtr)
	mid := rem / NIndirPtr
	inner := rem % NIndirPtr

	l1Block := ip.dinode.Addrs[slot]
	if l1Block == 0 {
		if !alloc {
			return 0
		}
		blk, ok := f.balloc()
		if !ok {
			return 0
		}
		ip.dinode.Addrs[slot] = blk
		l1Block = blk
	}
	l2Block := f.readIndirectEntry(l1Block, outer)
	if l2Block == 0 {
		if !alloc {
			return 0
		}
		blk, ok := f.balloc()
		if !ok {
			return 0
		}
		f.writeIndirectEntry(l1Block, outer, blk)
		l2Block = blk
	}
	l3Block := f.readIndirectEntry(l2Block, mid)
	if l3Block == 0 {
		if !alloc {
			return 0
		}
		blk, ok := f.balloc()
		if !ok {
			return 0
		}
		f.writeIndirectEntry(l2Block, mid, blk)
		l3Block = blk
	}
	leaf := f.readIndirectEntry(l3Block, inner)
	if leaf == 0 && alloc {
		blk, ok := f.balloc()
		if !ok {
			return 0
		}
		f.writeIndirectEntry(l3Block, inner, blk)
		leaf = blk
	}
	return leaf
}

// itruncate recursively walks and frees every data block reachable via
// direct and 1/2/3-level indirect pointers (spec §4.3).
func (f *FS) itruncate(ip *Inode) {
	for i := 0; i < NDirect; i++ {
		if ip.dinode.Addrs[i] != 0 {
			f.bfree(ip.dinode.Addrs[i])
			ip.dinode.Addrs[i] = 0
		}
	}
	if ip.dinode.Addrs[singleIndirect] != 0 {
		f.freeIndirectLevel(ip.dinode.Addrs[singleIndirect], 0)
		ip.dinode.Addrs[singleIndirect] = 0
	}
	if ip.dinode.Addrs[doubleIndirect] != 0 {
		f.freeIndirectLevel(ip.dinode.Addrs[doubleIndirect], 1)
		ip.dinode.Addrs[doubleIndirect] = 0
	}
	if ip.dinode.Addrs[tripleIndirect] != 0 {
		f.freeIndirectLevel(ip.dinode.Addrs[tripleIndirect], 2)
		ip.dinode.Addrs[tripleIndirect] = 0
	}
	ip.dinode.Size = 0
	ip.dinode.Blocks = 0
	f.iupdate(ip)
}

// freeIndirectLevel frees block and, if depth > 0, recurses into each of
// its NIndirPtr entries first (depth counts further indirection levels
// below this block: 0 = this block holds leaf pointers directly).
func (f *FS) freeIndirectLevel(block uint32, depth int) {
	if depth > 0 {
		b, err := f.Cache.Get(f.Dev, int(block))
		if err == 0 {
			var entries [NIndirPtr]uint32
			for i := range entries {
				entries[i] = binary.LittleEndian.Uint32(b.Data[i*4:])
			}
			f.Cache.Release(b)
			for _, e := range entries {
				if e != 0 {
					f.freeIndirectLevel(e, depth-1)
				}
			}
		}
	} else {
		b, err := f.Cache.Get(f.Dev, int(block))
		if err == 0 {
			var entries [NIndirPtr]uint32
			for i := range entries {
				entries[i] = binary.LittleEndian.Uint32(b.Data[i*4:])
			}
			f.Cache.Release(b)
			for _, e := range entries {
				if e != 0 {
					f.bfree(e)
				}
			}
		}
	}
	f.bfree(block)
}

// --- content I/O ---

// Read copies up to n bytes starting at offset into dst, bounded by the
// inode's current size; short transfers are permitted. Touches atime.
func (f *FS) Read(ip *Inode, dst []byte, offset uint32, n uint32) (uint32, defs.Err_t) {
	if offset > ip.dinode.Size {
		return 0, 0
	}
	if offset+n > ip.dinode.Size {
		n = ip.dinode.Size - offset
	}
	var total uint32
	for total < n {
		bn := (offset + total) / defs.BlockSize
		boff := (offset + total) % defs.BlockSize
		blockno := f.bmap(ip, bn, false)
		want := n - total
		if want > defs.BlockSize-boff {
			want = defs.BlockSize - boff
		}
		if blockno == 0 {
			// a hole: abort the read at this point (spec §4.3)
			break
		}
		b, err := f.Cache.Get(f.Dev, int(blockno))
		if err != 0 {
			return total, err
		}
		copy(dst[total:total+want], b.Data[boff:boff+want])
		f.Cache.Release(b)
		total += want
	}
	ip.dinode.Atime++
	return total, 0
}

// Write copies n bytes from src into ip starting at offset, growing the
// file and lazily allocating blocks as needed, bounded by MaxFile. Short
// transfers happen when an allocation fails partway through. Touches
// mtime. Must run within the caller's transaction.
func (f *FS) Write(ip *Inode, src []byte, offset uint32, n uint32) (uint32, defs.Err_t) {
	maxBytes := uint64(MaxFile) * defs.BlockSize
	if uint64(offset) > maxBytes {
		return 0, defs.EINVAL
	}
	if uint64(offset)+uint64(n) > maxBytes {
		n = uint32(maxBytes - uint64(offset))
	}
	var total uint32
	for total < n {
		bn := (offset + total) / defs.BlockSize
		boff := (offset + total) % defs.BlockSize
		blockno := f.bmap(ip, bn, true)
		if blockno == 0 {
			// allocation failure: stop here, report the short count
			break
		}
		want := n - total
		if want > defs.BlockSize-boff {
			want = defs.BlockSize - boff
		}
		b, err := f.Cache.Get(f.Dev, int(blockno))
		if err != 0 {
			break
		}
		copy(b.Data[boff:boff+want], src[total:total+want])
		b.MarkDirty()
		f.Log.Write(int(blockno), b.Data[:])
		f.Cache.Release(b)
		total += want
	}
	if offset+total > ip.dinode.Size {
		ip.dinode.Size = offset + total
	}
	ip.dinode.Mtime++
	f.iupdate(ip)
	return total, 0
}
