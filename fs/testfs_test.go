package fs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"biscuit/blockdev"
	"biscuit/defs"
)

// newTestFS formats a small fresh image backed by a real file in t.TempDir()
// and returns the mounted FS plus its root inode (referenced, not locked).
// nblocks is sized generously enough for large-file and indirect-block
// tests; ninodes is kept small so inode-table-exhaustion tests stay cheap.
func newTestFS(t *testing.T, nblocks, ninodes int) (*FS, *Inode) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fs.img")
	dev, err := blockdev.CreateImage(path, nblocks)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })

	f, ferr := Format(dev, defs.DevDisk0, nblocks, ninodes, 64, 32)
	require.Equal(t, defs.Err_t(0), ferr)

	root := f.Get(RootIno)
	return f, root
}

func withTxn(f *FS, fn func()) {
	f.Log.BeginOp()
	defer f.Log.EndOp()
	fn()
}
