package fs

import (
	"sync"

	"biscuit/blockdev"
	"biscuit/bufcache"
	"biscuit/defs"
	"biscuit/ksync"
	"biscuit/txlog"
)

// NInodeTable is the fixed size of the in-memory inode table (spec §3:
// "In-memory inode ... table reference count ref").
const NInodeTable = 256

// FS wires together the buffer cache, the log collaborator, and the
// in-memory inode table that the rest of this package's operations work
// against. One FS value models one mounted device.
type FS struct {
	Dev   defs.Dev_t
	Cache *bufcache.Cache
	Log   *txlog.Log
	Sb    Superblock

	itableMu sync.Mutex
	itable   [NInodeTable]*Inode

	// Reclaimed counts inodes truncated-and-freed by reclaimOrphans at the
	// most recent Mount; cmd/kernelsim's fsck subcommand reports it.
	Reclaimed int
}

// Mount reads the superblock from dev, validates its magic, reconciles
// orphaned inodes (spec §4.3's "Orphan reclaim at mount"), and returns a
// ready FS.
func Mount(dev blockdev.BlockDevice, devID defs.Dev_t, log *txlog.Log, nbufs int) (*FS, defs.Err_t) {
	cache := bufcache.New(dev, devID, nbufs)
	b, err := cache.Get(devID, 1)
	if err != 0 {
		return nil, err
	}
	sb := DecodeSuperblock(b.Data[:])
	cache.Release(b)
	if sb.Magic != FSMagic {
		return nil, defs.EINVAL
	}

	f := &FS{Dev: devID, Cache: cache, Log: log, Sb: sb}
	for i := range f.itable {
		f.itable[i] = &Inode{fs: f, lock: ksync.NewSleepLock("inode")}
	}
	f.reclaimOrphans()
	return f, 0
}

// reclaimOrphans walks every dinode and, for any inode with type != free
// and nlink == 0, pretends the last reference was just dropped so
// truncate-on-put reclaims its space (spec §4.3, last paragraph).
func (f *FS) reclaimOrphans() {
	f.Reclaimed = 0
	for inum := uint32(1); inum < f.Sb.NInodes; inum++ {
		ip := f.Get(inum)
		f.Lock(ip)
		if ip.dinode.Type != defs.ItypeFree && ip.dinode.Nlink == 0 {
			f.Log.BeginOp()
			f.itruncate(ip)
			ip.dinode.Type = defs.ItypeFree
			f.iupdate(ip)
			f.Log.EndOp()
			f.Reclaimed++
		}
		f.Unlock(ip)
		f.Put(ip)
	}
}
