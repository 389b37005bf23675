package fs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biscuit/blockdev"
	"biscuit/defs"
	"biscuit/txlog"
)

func TestFormat_CreatesRootDirectory(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	f.Lock(root)
	defer f.Unlock(root)
	assert.Equal(t, defs.ItypeDir, root.Type())
	assert.Equal(t, uint32(RootIno), root.Inum())

	dot, _, ok := f.Lookup(root, ".")
	require.True(t, ok)
	assert.Equal(t, uint32(RootIno), dot.Inum())
	f.Put(dot)
}

func TestMount_RejectsWrongMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.img")
	dev, err := blockdev.CreateImage(path, 32)
	require.NoError(t, err)
	defer dev.Close()

	log := txlog.New(dev)
	_, merr := Mount(dev, defs.DevDisk0, log, 8)
	assert.Equal(t, defs.EINVAL, merr)
}

func TestMount_ReclaimsOrphanedInodeLeftWithZeroNlink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fs.img")
	dev, err := blockdev.CreateImage(path, 2048)
	require.NoError(t, err)
	defer dev.Close()

	f, ferr := Format(dev, defs.DevDisk0, 2048, 64, 64, 32)
	require.Equal(t, defs.Err_t(0), ferr)
	root := f.Get(RootIno)

	var orphanInum uint32
	withTxn(f, func() {
		ip, aerr := f.Alloc(defs.ItypeFile)
		require.Equal(t, defs.Err_t(0), aerr)
		orphanInum = ip.Inum()
		f.Lock(ip)
		f.Write(ip, []byte("leaked"), 0, 6)
		ip.dinode.Nlink = 0 // simulate a crash after unlink dropped the link but before reclaim
		f.iupdate(ip)
		f.Unlock(ip)
		// ip is never Put: the simulated crash leaves no one to drop the
		// last reference, so Put's own truncate-and-free never runs.
	})
	f.Put(root)

	// Remount the same image: reclaimOrphans should notice the dangling
	// zero-nlink inode and free it.
	log2 := txlog.New(dev)
	f2, merr := Mount(dev, defs.DevDisk0, log2, 32)
	require.Equal(t, defs.Err_t(0), merr)
	defer f2.Put(f2.Get(RootIno))

	assert.Equal(t, 1, f2.Reclaimed)

	reclaimed := f2.Get(orphanInum)
	f2.Lock(reclaimed)
	assert.Equal(t, defs.ItypeFree, reclaimed.Type())
	f2.Unlock(reclaimed)
	f2.Put(reclaimed)
}

func TestMount_NoOrphansLeavesReclaimedZero(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)
	assert.Equal(t, 0, f.Reclaimed)
}
