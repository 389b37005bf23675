package main

import (
	"fmt"
	"os"

	"biscuit/blockdev"
	"biscuit/defs"
	"biscuit/dispatch"
	"biscuit/fs"
	"biscuit/mem"
	"biscuit/proc"
	"biscuit/sched"
	"biscuit/txlog"
)

// simInstance bundles one booted kernel plus the disk it owns, so the
// boot/fsck/bench subcommands can tear it down uniformly.
type simInstance struct {
	Kernel *dispatch.Kernel
	Disk   *blockdev.SimDisk
	Cpu0   *proc.Cpu
}

func parseScheduler(name string, table *proc.Table) (sched.Selector, error) {
	switch name {
	case "round-robin", "roundrobin", "rr":
		return sched.NewRoundRobin(table), nil
	case "priority", "prio":
		return sched.NewPriority(table), nil
	case "mlfq":
		return sched.NewMlfq(), nil
	default:
		return nil, fmt.Errorf("kernelsim: unknown scheduler kind %q (want round-robin, priority, or mlfq)", name)
	}
}

// bootFresh formats a brand new disk image and boots a kernel instance on
// top of it, installing the init process.
func bootFresh(cfg BootConfig) (*simInstance, error) {
	disk, err := blockdev.CreateImage(cfg.DiskImage, cfg.DiskBlocks)
	if err != nil {
		return nil, fmt.Errorf("kernelsim: creating disk image: %w", err)
	}
	fsys, ferr := fs.Format(disk, defs.DevDisk0, cfg.DiskBlocks, cfg.NInodes, cfg.NLogBlocks, cfg.NBufs)
	if ferr != 0 {
		disk.Close()
		return nil, fmt.Errorf("kernelsim: formatting filesystem: %s", ferr)
	}
	return bootOn(cfg, disk, fsys)
}

// bootExisting mounts an already-formatted disk image (cmd/kernelsim fsck
// and a warm restart both use this path).
func bootExisting(cfg BootConfig) (*simInstance, error) {
	disk, err := blockdev.OpenImage(cfg.DiskImage, cfg.DiskBlocks)
	if err != nil {
		return nil, fmt.Errorf("kernelsim: opening disk image: %w", err)
	}
	log := txlog.New(disk)
	fsys, merr := fs.Mount(disk, defs.DevDisk0, log, cfg.NBufs)
	if merr != 0 {
		disk.Close()
		return nil, fmt.Errorf("kernelsim: mounting filesystem: %s", merr)
	}
	return bootOn(cfg, disk, fsys)
}

func bootOn(cfg BootConfig, disk *blockdev.SimDisk, fsys *fs.FS) (*simInstance, error) {
	alloc := mem.NewAllocator(cfg.MemFrames, defs.BlockSize)
	table := proc.NewTable()

	sel, err := parseScheduler(cfg.Scheduler, table)
	if err != nil {
		disk.Close()
		return nil, err
	}
	scheduler := sched.NewScheduler(sel)

	kernel := dispatch.NewKernel(table, fsys, alloc, scheduler, 0)
	cpu0 := proc.NewCpu()
	if _, ierr := kernel.BootInit(cpu0, "init"); ierr != 0 {
		disk.Close()
		return nil, fmt.Errorf("kernelsim: booting init process: %s", ierr)
	}
	return &simInstance{Kernel: kernel, Disk: disk, Cpu0: cpu0}, nil
}

func (s *simInstance) Close() {
	if s.Disk != nil {
		s.Disk.Close()
	}
}

// removeImageIfRequested deletes a stale disk image before a fresh boot
// when the caller passed --fresh; kept as its own function so cmd_boot.go's
// RunE stays readable.
func removeImageIfRequested(path string, fresh bool) error {
	if !fresh {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("kernelsim: removing stale disk image: %w", err)
	}
	return nil
}
