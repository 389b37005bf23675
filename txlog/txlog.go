// Package txlog models the write-ahead log as spec §2 frames it: an
// external collaborator whose only contract the rest of the kernel needs
// is begin_op/end_op bracketing and log_write superseding direct
// writeback, with commit being atomic or not observed. The real commit
// and crash-recovery machinery is out of scope (spec §1); this package
// gives the contract one host-simulated implementation that buffers
// writes per transaction and applies them to the block device only at
// end_op, so tests can exercise the "committed atomically" property
// without a real journal.
package txlog

import (
	"sync"

	"github.com/google/uuid"

	"biscuit/blockdev"
	"biscuit/defs"
)

// LoggedWrite is one block write recorded within a transaction.
type LoggedWrite struct {
	Block int
	Data  []byte
}

// Log serializes filesystem transactions: only one may be open at a time,
// matching spec §5's "transactional I/O framing" shared invariant.
type Log struct {
	mu      sync.Mutex
	dev     blockdev.BlockDevice
	active  bool
	writes  map[int]*LoggedWrite // keyed by block, last write wins like the real log's absorption
	lastTxn uuid.UUID
}

func New(dev blockdev.BlockDevice) *Log {
	return &Log{dev: dev}
}

// BeginOp opens a transaction; callers must pair it with exactly one
// EndOp. Nesting is not supported (spec's log is a single contract, not a
// stack), matching the shallow begin/end bracket the spec describes.
func (l *Log) BeginOp() defs.Err_t {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return defs.EINVAL
	}
	l.active = true
	l.writes = map[int]*LoggedWrite{}
	l.lastTxn = uuid.New()
	return 0
}

// Write stages a block write within the open transaction rather than
// writing straight through, superseding a caller's direct writeback (spec
// §2: "log_write(buf) supersedes direct writeback").
func (l *Log) Write(block int, data []byte) defs.Err_t {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return defs.EINVAL
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	l.writes[block] = &LoggedWrite{Block: block, Data: cp}
	return 0
}

// EndOp commits every write staged since BeginOp. Either every block
// reaches the device or — on the first I/O error — the transaction stops
// applying further blocks and returns that error; a real log would roll
// the whole transaction back on crash, but mid-transaction partial
// application here can only happen on a genuine device error, which spec
// §7 already treats as fatal-grade ("corruptions ... are fatal").
func (l *Log) EndOp() defs.Err_t {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return defs.EINVAL
	}
	for block, w := range l.writes {
		req := &blockdev.Request{Write: true, Block: block, Data: w.Data}
		if err := l.dev.Do(req); err != 0 {
			l.active = false
			l.writes = nil
			return err
		}
	}
	err := l.dev.Flush()
	l.active = false
	l.writes = nil
	return err
}

// LastTxnID returns the id of the most recently committed (or
// in-progress) transaction, for debug tracing.
func (l *Log) LastTxnID() uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastTxn
}
