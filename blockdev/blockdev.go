// Package blockdev defines the block device contract the buffer cache
// invokes (spec §1: the virtio/AHCI driver is an external collaborator;
// only its operation contract is in scope) and one host-simulated
// implementation sufficient to drive and test the rest of the kernel.
// Grounded on the sibling biscuit fork's ufs-driver.go ahci_disk_t, which
// backs a simulated disk with an *os.File and serializes requests with a
// mutex.
package blockdev

import (
	"biscuit/defs"
)

// Request is the single kind of operation the buffer cache issues against
// a block device: read or write exactly one BlockSize-sized block.
type Request struct {
	Write bool
	Block int
	Data  []byte // len == defs.BlockSize; read fills it, write consumes it
}

// BlockDevice is the contract spec §2's Buffer Cache entry calls "the sole
// path between upper layers and the block device".
type BlockDevice interface {
	// Do services req synchronously, returning an error for I/O failure.
	// The buffer cache never issues more than one outstanding request per
	// buffer, so no request-queue depth is modeled here.
	Do(req *Request) defs.Err_t
	// Flush durably persists everything previously written.
	Flush() defs.Err_t
	// NumBlocks reports the device's fixed size in blocks.
	NumBlocks() int
}
