package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biscuit/defs"
)

func TestFS_AllocGetPutLifecycle(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	var ip *Inode
	withTxn(f, func() {
		var aerr defs.Err_t
		ip, aerr = f.Alloc(defs.ItypeFile)
		require.Equal(t, defs.Err_t(0), aerr)
	})
	require.NotNil(t, ip)

	f.Lock(ip)
	assert.Equal(t, defs.ItypeFile, ip.Type())
	assert.Equal(t, uint16(1), ip.Nlink())
	f.Unlock(ip)
	f.Put(ip)
}

func TestFS_GetReturnsSameHandleForOutstandingReferences(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	again := f.Get(RootIno)
	assert.Same(t, root, again, "two live references to the same inode must share one in-memory handle")
	f.Put(again)
}

func TestFS_PutLastRefOnZeroNlinkTruncatesAndFrees(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	var ip *Inode
	withTxn(f, func() {
		ip, _ = f.Alloc(defs.ItypeFile)
		f.Lock(ip)
		f.Write(ip, []byte("hello"), 0, 5)
		f.Unlock(ip)
	})
	inum := ip.Inum()

	withTxn(f, func() {
		f.Lock(ip)
		ip.dinode.Nlink = 0
		f.iupdate(ip)
		f.Unlock(ip)
		f.Put(ip) // last reference: drops to zero and frees on disk
	})

	reloaded := f.Get(inum)
	f.Lock(reloaded)
	assert.Equal(t, defs.ItypeFree, reloaded.Type(), "an orphaned inode's last Put must truncate and mark it free")
	f.Unlock(reloaded)
	f.Put(reloaded)
}

func TestFS_ReadWriteRoundTripWithinDirectBlocks(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	var ip *Inode
	withTxn(f, func() {
		ip, _ = f.Alloc(defs.ItypeFile)
	})
	defer f.Put(ip)

	want := []byte("the quick brown fox jumps over the lazy dog")
	withTxn(f, func() {
		f.Lock(ip)
		n, werr := f.Write(ip, want, 0, uint32(len(want)))
		f.Unlock(ip)
		require.Equal(t, defs.Err_t(0), werr)
		require.Equal(t, uint32(len(want)), n)
	})

	got := make([]byte, len(want))
	f.Lock(ip)
	n, rerr := f.Read(ip, got, 0, uint32(len(got)))
	f.Unlock(ip)
	require.Equal(t, defs.Err_t(0), rerr)
	require.Equal(t, uint32(len(want)), n)
	assert.Equal(t, want, got)
	assert.Equal(t, uint32(len(want)), ip.Size())
}

func TestFS_ReadPastEOFReturnsShortCount(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	var ip *Inode
	withTxn(f, func() {
		ip, _ = f.Alloc(defs.ItypeFile)
		f.Lock(ip)
		f.Write(ip, []byte("abc"), 0, 3)
		f.Unlock(ip)
	})
	defer f.Put(ip)

	buf := make([]byte, 100)
	f.Lock(ip)
	n, err := f.Read(ip, buf, 0, 100)
	f.Unlock(ip)
	assert.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, uint32(3), n)
}

func TestFS_WriteSpanningDirectSingleAndDoubleIndirectBlocks(t *testing.T) {
	// Enough blocks for direct (10) + single-indirect (1024) +
	// a few double-indirect leaves, plus inode/bitmap/log overhead.
	f, root := newTestFS(t, 3500, 64)
	defer f.Put(root)

	var ip *Inode
	withTxn(f, func() {
		ip, _ = f.Alloc(defs.ItypeFile)
	})
	defer f.Put(ip)

	// One byte in the direct region, one in the single-indirect region,
	// one in the double-indirect region.
	offsets := []uint32{
		5 * defs.BlockSize,                                   // direct block 5
		uint32(NDirect+3) * defs.BlockSize,                   // single-indirect entry 3
		uint32(NDirect+NIndirPtr+2) * defs.BlockSize,         // double-indirect entry 2
	}
	for i, off := range offsets {
		val := []byte{byte(0xA0 + i)}
		withTxn(f, func() {
			f.Lock(ip)
			n, werr := f.Write(ip, val, off, 1)
			f.Unlock(ip)
			require.Equal(t, defs.Err_t(0), werr)
			require.Equal(t, uint32(1), n)
		})
	}

	for i, off := range offsets {
		got := make([]byte, 1)
		f.Lock(ip)
		n, rerr := f.Read(ip, got, off, 1)
		f.Unlock(ip)
		require.Equal(t, defs.Err_t(0), rerr)
		require.Equal(t, uint32(1), n)
		assert.Equal(t, byte(0xA0+i), got[0])
	}
}

func TestFS_TruncateFreesBlocksAcrossIndirectionLevels(t *testing.T) {
	f, root := newTestFS(t, 3500, 64)
	defer f.Put(root)

	var ip *Inode
	withTxn(f, func() {
		ip, _ = f.Alloc(defs.ItypeFile)
		f.Lock(ip)
		f.Write(ip, []byte{1}, uint32(NDirect+NIndirPtr+1)*defs.BlockSize, 1)
		f.Unlock(ip)
	})
	defer f.Put(ip)

	withTxn(f, func() {
		f.Lock(ip)
		f.Truncate(ip)
		f.Unlock(ip)
	})

	assert.Equal(t, uint32(0), ip.Size())
	buf := make([]byte, 1)
	f.Lock(ip)
	n, err := f.Read(ip, buf, 0, 1)
	f.Unlock(ip)
	assert.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, uint32(0), n, "a truncated file must read back empty")
}

func TestFS_BallocAndBfreeReuseFreedBlock(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	var first uint32
	withTxn(f, func() {
		blk, ok := f.balloc()
		require.True(t, ok)
		first = blk
		f.bfree(blk)
	})

	withTxn(f, func() {
		second, ok := f.balloc()
		require.True(t, ok)
		assert.Equal(t, first, second, "the just-freed block should be the next one allocated")
	})
}

func TestFS_BfreeOfAlreadyFreeBlockPanics(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	var blk uint32
	withTxn(f, func() {
		var ok bool
		blk, ok = f.balloc()
		require.True(t, ok)
		f.bfree(blk)
	})

	assert.Panics(t, func() {
		withTxn(f, func() { f.bfree(blk) })
	})
}
