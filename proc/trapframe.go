package proc

// TrapFrame holds the user register snapshot a supervisor call trap saves
// (original_source's struct trapframe), narrowed to what spec §4.9's
// dispatcher actually reads: the faulting PC and the eight argument
// registers a0-a7, plus the slot a0 is overwritten with on return. Copying
// the full 35-register frame to and from a real trapframe page is trap-
// vector machinery out of scope per spec §1.
type TrapFrame struct {
	Epc  uint64
	Args [8]uint64
}

// Arg returns positional argument i as a raw 64-bit word. Spec §4.9:
// "arguments are extracted by position... into typed temporaries"; the
// typed views below are the temporaries, Arg is their shared source.
func (tf *TrapFrame) Arg(i int) uint64 {
	if i < 0 || i >= len(tf.Args) {
		return 0
	}
	return tf.Args[i]
}

// ArgInt views argument i as a signed 32-bit integer.
func (tf *TrapFrame) ArgInt(i int) int32 { return int32(tf.Arg(i)) }

// ArgLong views argument i as a signed 64-bit integer.
func (tf *TrapFrame) ArgLong(i int) int64 { return int64(tf.Arg(i)) }

// ArgAddr views argument i as a user virtual address. Validating that the
// address actually lies in the process's mapped range is the job of the
// specific copy primitive that dereferences it (spec §4.9: "validated
// lazily by the specific copy primitives that consume them"), not of
// extraction itself.
func (tf *TrapFrame) ArgAddr(i int) uintptr { return uintptr(tf.Arg(i)) }

// SetReturn writes result into the slot userret restores into a0.
func (tf *TrapFrame) SetReturn(result int64) { tf.Args[0] = uint64(result) }
