package proc

// Context models the callee-saved register set (ra, sp, s0-s11 on RISC-V)
// a real kernel context switch saves and restores (original_source's
// struct context). The assembly-level swtch is hardware machinery out of
// scope per spec §1; this simulation runs each process's kernel thread as
// a parked goroutine instead — the same substitution spec §9's design note
// already makes for sleep/wakeup — so Context carries no fields of its
// own. It exists only so Cpu and Proc have the slot spec §3 names.
type Context struct{}
