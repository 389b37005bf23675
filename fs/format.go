package fs

import (
	"biscuit/blockdev"
	"biscuit/bufcache"
	"biscuit/defs"
	"biscuit/txlog"
)

// Format lays out a fresh filesystem image directly on dev and creates
// the root directory. Building the on-disk layout from scratch is
// ordinarily mkfs's job, an external collaborator out of scope per spec
// §1; this is test/bring-up scaffolding only, needed because this repo
// has no separate mkfs binary to hand a disk image to.
func Format(dev blockdev.BlockDevice, devID defs.Dev_t, nblocks, ninodes, nlog, nbufs int) (*FS, defs.Err_t) {
	sb := Superblock{
		Magic:   FSMagic,
		Size:    uint32(nblocks),
		NInodes: uint32(ninodes),
		NLog:    uint32(nlog),
	}
	sb.LogStart = 2
	sb.InodeStart = sb.LogStart + sb.NLog
	ipb := uint32(defs.BlockSize / DinodeSize)
	inodeBlocks := (sb.NInodes + ipb - 1) / ipb
	sb.BmapStart = sb.InodeStart + inodeBlocks
	bpb := uint32(defs.BlockSize * 8)
	bitmapBlocks := (sb.Size + bpb - 1) / bpb
	sb.DataStart = sb.BmapStart + bitmapBlocks
	sb.NBlocks = sb.Size - sb.DataStart

	zero := make([]byte, defs.BlockSize)
	for b := 0; b < nblocks; b++ {
		req := &blockdev.Request{Write: true, Block: b, Data: zero}
		if err := dev.Do(req); err != 0 {
			return nil, err
		}
	}

	bootCache := bufcache.New(dev, devID, 8)
	sbBuf, err := bootCache.Get(devID, 1)
	if err != 0 {
		return nil, err
	}
	sb.Encode(sbBuf.Data[:])
	sbBuf.MarkDirty()
	if werr := bootCache.WriteThrough(sbBuf); werr != 0 {
		bootCache.Release(sbBuf)
		return nil, werr
	}
	bootCache.Release(sbBuf)

	log := txlog.New(dev)
	f, merr := Mount(dev, devID, log, nbufs)
	if merr != 0 {
		return nil, merr
	}

	log.BeginOp()
	root, aerr := f.Alloc(defs.ItypeDir)
	if aerr != 0 {
		log.EndOp()
		return nil, aerr
	}
	if root.inum != RootIno {
		log.EndOp()
		return nil, defs.EINVAL
	}
	f.Lock(root)
	if derr := f.InitDir(root, RootIno); derr != 0 {
		f.Unlock(root)
		log.EndOp()
		return nil, derr
	}
	f.Unlock(root)
	f.Put(root)
	log.EndOp()

	return f, 0
}
