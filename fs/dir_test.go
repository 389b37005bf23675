package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biscuit/defs"
)

func TestFS_LinkLookupUnlink(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	var ip *Inode
	withTxn(f, func() {
		ip, _ = f.Alloc(defs.ItypeFile)
		f.Lock(root)
		lerr := f.Link(root, "greeting", ip.Inum())
		f.Unlock(root)
		require.Equal(t, defs.Err_t(0), lerr)
	})

	f.Lock(root)
	found, _, ok := f.Lookup(root, "greeting")
	f.Unlock(root)
	require.True(t, ok)
	assert.Equal(t, ip.Inum(), found.Inum())
	f.Put(found)

	withTxn(f, func() {
		f.Lock(root)
		uerr := f.Unlink(root, "greeting")
		f.Unlock(root)
		require.Equal(t, defs.Err_t(0), uerr)
	})

	f.Lock(root)
	_, _, ok = f.Lookup(root, "greeting")
	f.Unlock(root)
	assert.False(t, ok, "unlinked name must no longer resolve")
	f.Put(ip)
}

func TestFS_LinkDuplicateNameFails(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	var a, b *Inode
	withTxn(f, func() {
		a, _ = f.Alloc(defs.ItypeFile)
		b, _ = f.Alloc(defs.ItypeFile)
		f.Lock(root)
		require.Equal(t, defs.Err_t(0), f.Link(root, "dup", a.Inum()))
		err := f.Link(root, "dup", b.Inum())
		f.Unlock(root)
		assert.Equal(t, defs.EEXIST, err)
	})
	f.Put(a)
	f.Put(b)
}

func TestFS_LinkNameTooLongFails(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	long := make([]byte, DirSize+1)
	for i := range long {
		long[i] = 'a'
	}
	f.Lock(root)
	err := f.Link(root, string(long), RootIno)
	f.Unlock(root)
	assert.Equal(t, defs.ENAMETOOLONG, err)
}

func TestFS_UnlinkDotAndDotDotRejected(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	f.Lock(root)
	err1 := f.Unlink(root, ".")
	err2 := f.Unlink(root, "..")
	f.Unlock(root)
	assert.Equal(t, defs.EINVAL, err1)
	assert.Equal(t, defs.EINVAL, err2)
}

func TestFS_UnlinkNonexistentNameFails(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	f.Lock(root)
	err := f.Unlink(root, "nope")
	f.Unlock(root)
	assert.Equal(t, defs.ENOENT, err)
}

func TestFS_UnlinkNonEmptyDirectoryFails(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	var sub *Inode
	withTxn(f, func() {
		sub, _ = f.Alloc(defs.ItypeDir)
		f.Lock(sub)
		f.InitDir(sub, root.Inum())
		f.Unlock(sub)
		f.Lock(root)
		f.Link(root, "sub", sub.Inum())
		root.dinode.Nlink++
		f.iupdate(root)
		f.Unlock(root)

		var child *Inode
		child, _ = f.Alloc(defs.ItypeFile)
		f.Lock(sub)
		f.Link(sub, "child", child.Inum())
		f.Unlock(sub)
		f.Put(child)
	})

	f.Lock(root)
	err := f.Unlink(root, "sub")
	f.Unlock(root)
	assert.Equal(t, defs.EINVAL, err)
	f.Put(sub)
}

func TestFS_InitDirCreatesDotAndDotDot(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	var sub *Inode
	withTxn(f, func() {
		sub, _ = f.Alloc(defs.ItypeDir)
		f.Lock(sub)
		derr := f.InitDir(sub, root.Inum())
		f.Unlock(sub)
		require.Equal(t, defs.Err_t(0), derr)
	})
	defer f.Put(sub)

	f.Lock(sub)
	dot, _, ok := f.Lookup(sub, ".")
	require.True(t, ok)
	assert.Equal(t, sub.Inum(), dot.Inum())
	f.Put(dot)

	dotdot, _, ok := f.Lookup(sub, "..")
	require.True(t, ok)
	assert.Equal(t, root.Inum(), dotdot.Inum())
	f.Put(dotdot)
	f.Unlock(sub)
}
