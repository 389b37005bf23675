package blockdev

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biscuit/defs"
)

func TestSimDisk_CreateWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := CreateImage(path, 16)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, 16, d.NumBlocks())

	want := make([]byte, defs.BlockSize)
	for i := range want {
		want[i] = byte(i)
	}
	require.Equal(t, defs.Err_t(0), d.Do(&Request{Write: true, Block: 3, Data: want}))

	got := make([]byte, defs.BlockSize)
	require.Equal(t, defs.Err_t(0), d.Do(&Request{Block: 3, Data: got}))
	assert.Equal(t, want, got)
}

func TestSimDisk_OutOfRangeBlockIsEINVAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := CreateImage(path, 4)
	require.NoError(t, err)
	defer d.Close()

	buf := make([]byte, defs.BlockSize)
	assert.Equal(t, defs.EINVAL, d.Do(&Request{Block: 4, Data: buf}))
	assert.Equal(t, defs.EINVAL, d.Do(&Request{Block: -1, Data: buf}))
}

func TestSimDisk_WrongSizedWriteBufferIsEINVAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := CreateImage(path, 4)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, defs.EINVAL, d.Do(&Request{Write: true, Block: 0, Data: make([]byte, 10)}))
}

func TestSimDisk_OpenImageSeesDataWrittenByCreateImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d1, err := CreateImage(path, 8)
	require.NoError(t, err)

	want := make([]byte, defs.BlockSize)
	want[0] = 0x5A
	require.Equal(t, defs.Err_t(0), d1.Do(&Request{Write: true, Block: 1, Data: want}))
	require.Equal(t, defs.Err_t(0), d1.Flush())
	require.NoError(t, d1.Close())

	d2, err := OpenImage(path, 8)
	require.NoError(t, err)
	defer d2.Close()

	got := make([]byte, defs.BlockSize)
	require.Equal(t, defs.Err_t(0), d2.Do(&Request{Block: 1, Data: got}))
	assert.Equal(t, want, got)
}

func TestSimDisk_SecondOpenOfSameImageFailsWhileFirstIsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d1, err := CreateImage(path, 4)
	require.NoError(t, err)
	defer d1.Close()

	_, err = OpenImage(path, 4)
	assert.Error(t, err, "a second open of an already-locked image must fail")
}
