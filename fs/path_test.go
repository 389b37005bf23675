package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biscuit/defs"
)

func mkdirp(t *testing.T, f *FS, root, cwd *Inode, path string) *Inode {
	t.Helper()
	var ip *Inode
	var err defs.Err_t
	withTxn(f, func() {
		ip, err = f.Create(root, cwd, path, defs.ItypeDir, 0, 0, false)
	})
	require.Equal(t, defs.Err_t(0), err)
	return ip
}

func mkfile(t *testing.T, f *FS, root, cwd *Inode, path string, content []byte) *Inode {
	t.Helper()
	var ip *Inode
	var err defs.Err_t
	withTxn(f, func() {
		ip, err = f.Create(root, cwd, path, defs.ItypeFile, 0, 0, false)
		require.Equal(t, defs.Err_t(0), err)
		if len(content) > 0 {
			f.Lock(ip)
			f.Write(ip, content, 0, uint32(len(content)))
			f.Unlock(ip)
		}
	})
	return ip
}

func TestFS_NameiResolvesAbsolutePath(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	ip := mkfile(t, f, root, root, "/hello.txt", []byte("hi"))
	defer f.Put(ip)

	found, err := f.Namei("/hello.txt", root, root)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, ip.Inum(), found.Inum())
	f.Put(found)
}

func TestFS_NameiParentStopsOneLevelShort(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	sub := mkdirp(t, f, root, root, "/sub")
	defer f.Put(sub)

	dir, name, err := f.NameiParent("/sub/leaf.txt", root, root)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, sub.Inum(), dir.Inum())
	assert.Equal(t, "leaf.txt", name)
	f.Put(dir)
}

func TestFS_NameiThroughMissingComponentIsENOENT(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	_, err := f.Namei("/nope/leaf", root, root)
	assert.Equal(t, defs.ENOENT, err)
}

func TestFS_NameiThroughNonDirectoryIsENOTDIR(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	ip := mkfile(t, f, root, root, "/plain", []byte("x"))
	defer f.Put(ip)

	_, err := f.Namei("/plain/child", root, root)
	assert.Equal(t, defs.ENOTDIR, err)
}

func TestFS_SymlinkChainResolvesToFinalTarget(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	target := mkfile(t, f, root, root, "/real.txt", []byte("payload"))
	defer f.Put(target)

	withTxn(f, func() {
		require.Equal(t, defs.Err_t(0), f.Symlink("/real.txt", "/link1", root, root))
		require.Equal(t, defs.Err_t(0), f.Symlink("/link1", "/link2", root, root))
	})

	resolved, err := f.Namei("/link2", root, root)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, target.Inum(), resolved.Inum())
	f.Put(resolved)
}

func TestFS_SymlinkLoopFailsWithELOOP(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	withTxn(f, func() {
		require.Equal(t, defs.Err_t(0), f.Symlink("/b", "/a", root, root))
		require.Equal(t, defs.Err_t(0), f.Symlink("/a", "/b", root, root))
	})

	_, err := f.Namei("/a", root, root)
	assert.Equal(t, defs.ELOOP, err)
}

func TestFS_RelativeSymlinkTargetFailsWithENOENT(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	withTxn(f, func() {
		require.Equal(t, defs.Err_t(0), f.Symlink("relative/target", "/rel", root, root))
	})

	_, err := f.Namei("/rel", root, root)
	assert.Equal(t, defs.ENOENT, err)
}

func TestFS_ReadlinkReturnsStoredTargetWithoutFollowing(t *testing.T) {
	f, root := newTestFS(t, 2048, 64)
	defer f.Put(root)

	withTxn(f, func() {
		require.Equal(t, defs.Err_t(0), f.Symlink("/does-not-exist", "/dangling", root, root))
	})

	buf := make([]byte, 64)
	n, err := f.Readlink("/dangling", buf, root, root)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, "/does-not-exist", string(buf[:n]))
}
