// Package bufcache implements the buffer cache of spec §4.2: a fixed pool
// of block buffers keyed by (device, block_no), hashed lookup with LRU
// eviction, per-buffer sleep lock. Grounded directly on
// original_source/xv6-riscv-riscv/kernel/bcache_enhanced.c — the hash
// table + doubly linked LRU list design is the canonical one (DESIGN.md
// Open Question 5); the thin passthrough variant the spec also mentions
// is not implemented.
package bufcache

import (
	"sync"

	"biscuit/blockdev"
	"biscuit/defs"
	"biscuit/ksync"
)

const hashSize = 256 // power of two, matches bcache_enhanced.h's HASH_SIZE

type key struct {
	dev   defs.Dev_t
	block int
}

func hash(k key) int {
	return (int(k.dev) ^ k.block) & (hashSize - 1)
}

// Buf is one cached block, addressable by (dev, block). Content access
// requires holding Lock, matching spec §3's "a caller holding the
// sleep-lock has exclusive content access".
type Buf struct {
	Lock  *ksync.SleepLock
	dev   defs.Dev_t
	block int
	valid bool
	dirty bool
	refs  int
	Data  [defs.BlockSize]byte

	hashNext, hashPrev *Buf
	lruNext, lruPrev   *Buf
}

// Cache is a fixed-size pool of Bufs; it never grows past nbufs, matching
// spec §4.2's "deterministic recycling so the cache is never enlarged
// beyond its static size".
type Cache struct {
	mu      sync.Mutex
	dev     blockdev.BlockDevice
	devID   defs.Dev_t
	buckets [hashSize]*Buf // sentinel head per bucket (circular)
	lruHead *Buf           // sentinel; lruHead.lruNext is most recently used
	bufs    []*Buf
}

func New(dev blockdev.BlockDevice, devID defs.Dev_t, nbufs int) *Cache {
	c := &Cache{dev: dev, devID: devID}
	for i := range c.buckets {
		s := &Buf{}
		s.hashNext, s.hashPrev = s, s
		c.buckets[i] = s
	}
	lru := &Buf{}
	lru.lruNext, lru.lruPrev = lru, lru
	c.lruHead = lru

	c.bufs = make([]*Buf, nbufs)
	for i := 0; i < nbufs; i++ {
		b := &Buf{Lock: ksync.NewSleepLock("buf")}
		c.bufs[i] = b
		b.lruNext = c.lruHead.lruNext
		b.lruPrev = c.lruHead
		c.lruHead.lruNext.lruPrev = b
		c.lruHead.lruNext = b
	}
	return c
}

func (c *Cache) bucketOf(b *Buf) *Buf { return c.buckets[hash(key{b.dev, b.block})] }

func hashUnlink(b *Buf) {
	b.hashPrev.hashNext = b.hashNext
	b.hashNext.hashPrev = b.hashPrev
}

func hashInsert(bucket, b *Buf) {
	b.hashNext = bucket.hashNext
	b.hashPrev = bucket
	bucket.hashNext.hashPrev = b
	bucket.hashNext = b
}

func lruUnlink(b *Buf) {
	b.lruPrev.lruNext = b.lruNext
	b.lruNext.lruPrev = b.lruPrev
}

func (c *Cache) lruInsertFront(b *Buf) {
	b.lruNext = c.lruHead.lruNext
	b.lruPrev = c.lruHead
	c.lruHead.lruNext.lruPrev = b
	c.lruHead.lruNext = b
}

// Get returns the buffer for (dev, block), locked for exclusive content
// access, reading from the device on a cache miss. Phase 1 of spec
// §4.2's lookup hashes the key and bumps refcount under the cache lock;
// phase 2 picks the LRU victim with refcount zero, rekeys it, and issues
// exactly one device read.
func (c *Cache) Get(dev defs.Dev_t, block int) (*Buf, defs.Err_t) {
	c.mu.Lock()
	k := key{dev, block}
	bucket := c.buckets[hash(k)]
	for b := bucket.hashNext; b != bucket; b = b.hashNext {
		if b.dev == dev && b.block == block {
			b.refs++
			c.mu.Unlock()
			b.Lock.Acquire()
			return b, 0
		}
	}

	// Miss: find the least recently used buffer with refs == 0.
	var victim *Buf
	for b := c.lruHead.lruPrev; b != c.lruHead; b = b.lruPrev {
		if b.refs == 0 {
			victim = b
			break
		}
	}
	if victim == nil {
		c.mu.Unlock()
		panic("bufcache: no refcount-zero buffer to recycle")
	}
	if victim.dev != 0 || victim.block != 0 || victim.valid {
		hashUnlink(victim)
	}
	victim.dev = dev
	victim.block = block
	victim.valid = false
	victim.dirty = false
	victim.refs = 1
	hashInsert(bucket, victim)
	c.mu.Unlock()

	victim.Lock.Acquire()
	if !victim.valid {
		req := &blockdev.Request{Block: block, Data: victim.Data[:]}
		if err := c.dev.Do(req); err != 0 {
			victim.Lock.Release()
			return nil, err
		}
		victim.valid = true
	}
	return victim, 0
}

// Release gives up exclusive access and drops the reference; once the
// last reference is gone the buffer moves to the front of the LRU list
// (most recently used, i.e. last to be picked as an eviction victim).
func (c *Cache) Release(b *Buf) {
	b.Lock.Release()
	c.mu.Lock()
	b.refs--
	if b.refs == 0 {
		lruUnlink(b)
		c.lruInsertFront(b)
	}
	c.mu.Unlock()
}

// MarkDirty flags b as needing writeback. Callers inside a transaction
// route the actual write through the log instead of calling WriteThrough
// directly (spec §4.2).
func (b *Buf) MarkDirty() { b.dirty = true }

// WriteThrough issues a synchronous write of b's content straight to the
// device, bypassing the log. Used only outside of any transaction (e.g.
// superblock initialization); ordinary filesystem mutations must instead
// go through txlog.Log.Write while holding b's lock.
func (c *Cache) WriteThrough(b *Buf) defs.Err_t {
	req := &blockdev.Request{Write: true, Block: b.block, Data: b.Data[:]}
	if err := c.dev.Do(req); err != 0 {
		return err
	}
	b.dirty = false
	return 0
}

// Flush writes back every dirty buffer for dev, outside of the log.
func (c *Cache) Flush(dev defs.Dev_t) defs.Err_t {
	c.mu.Lock()
	var dirty []*Buf
	for _, b := range c.bufs {
		if b.dev == dev && b.dirty {
			dirty = append(dirty, b)
		}
	}
	c.mu.Unlock()
	for _, b := range dirty {
		b.Lock.Acquire()
		if b.dirty {
			if err := c.WriteThrough(b); err != 0 {
				b.Lock.Release()
				return err
			}
		}
		b.Lock.Release()
	}
	return 0
}
