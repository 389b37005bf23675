package blockdev

import (
	"fmt"
	"os"
	"sync"

	"github.com/detailyang/go-fallocate"
	"golang.org/x/sys/unix"

	"biscuit/defs"
)

// SimDisk simulates a block device backed by a regular file, the same
// shape as the teacher fork's ahci_disk_t: one mutex serializes
// seek-then-read/write so operations never interleave. An exclusive
// advisory flock and fdatasync-based Flush give it real durability
// despite being host-simulated, instead of trusting the OS page cache
// silently.
type SimDisk struct {
	mu        sync.Mutex
	f         *os.File
	nblocks   int
	blockSize int
}

// CreateImage creates (or truncates) a backing file of nblocks blocks,
// preallocating its extents with go-fallocate so the image has real
// on-disk space reserved rather than relying on sparse-file holes.
func CreateImage(path string, nblocks int) (*SimDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	size := int64(nblocks) * defs.BlockSize
	if err := fallocate.Fallocate(f, 0, size); err != nil {
		// fallocate is unsupported on some filesystems (e.g. overlayfs,
		// tmpfs); fall back to a plain truncate rather than failing the
		// whole boot.
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, err
		}
	}
	return openSimDisk(f, nblocks)
}

// OpenImage opens an existing backing file for an nblocks-block device.
func OpenImage(path string, nblocks int) (*SimDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return openSimDisk(f, nblocks)
}

func openSimDisk(f *os.File, nblocks int) (*SimDisk, error) {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("blockdev: image already in use: %w", err)
	}
	return &SimDisk{f: f, nblocks: nblocks, blockSize: defs.BlockSize}, nil
}

func (d *SimDisk) Close() error {
	unix.Flock(int(d.f.Fd()), unix.LOCK_UN)
	return d.f.Close()
}

func (d *SimDisk) NumBlocks() int { return d.nblocks }

func (d *SimDisk) Do(req *Request) defs.Err_t {
	if req.Block < 0 || req.Block >= d.nblocks {
		return defs.EINVAL
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	off := int64(req.Block) * int64(d.blockSize)
	if _, err := d.f.Seek(off, 0); err != nil {
		return defs.EIO
	}
	if req.Write {
		if len(req.Data) != d.blockSize {
			return defs.EINVAL
		}
		if _, err := d.f.Write(req.Data); err != nil {
			return defs.EIO
		}
		return 0
	}
	if len(req.Data) != d.blockSize {
		req.Data = make([]byte, d.blockSize)
	}
	if _, err := d.f.Read(req.Data); err != nil {
		return defs.EIO
	}
	return 0
}

func (d *SimDisk) Flush() defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := unix.Fdatasync(int(d.f.Fd())); err != nil {
		return defs.EIO
	}
	return 0
}
