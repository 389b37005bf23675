package dispatch

import (
	"encoding/binary"

	"biscuit/defs"
	"biscuit/fs"
	"biscuit/proc"
)

func findFreeFd(p *proc.Proc) int {
	for i, f := range p.Ofile {
		if f == nil {
			return i
		}
	}
	return -1
}

func fdFile(p *proc.Proc, fd int) *fs.File {
	if fd < 0 || fd >= proc.NOFile {
		return nil
	}
	return p.Ofile[fd]
}

// sysOpen implements spec §6's open(path, flags): resolves or creates
// path per the O_CREATE/O_TRUNC bits, installs the result in the first
// free descriptor slot.
func sysOpen(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	path, err := proc.CopyInStr(p, tf.ArgAddr(0))
	if err != 0 {
		return int64(err)
	}
	flags := int(tf.ArgInt(1))
	access := flags & 0x3
	readable := access == OReadOnly || access == OReadWrite
	writable := access == OWriteOnly || access == OReadWrite

	fd := findFreeFd(p)
	if fd < 0 {
		return int64(defs.EMFILE)
	}

	k.FS.Log.BeginOp()
	var ip *fs.Inode
	if flags&OCreate != 0 {
		ip, err = k.FS.Create(k.Root, p.Cwd, path, defs.ItypeFile, 0, 0, true)
	} else {
		ip, err = k.FS.Namei(path, k.Root, p.Cwd)
	}
	if err != 0 {
		k.FS.Log.EndOp()
		return int64(err)
	}

	k.FS.Lock(ip)
	if ip.Type() == defs.ItypeDir && writable {
		k.FS.Unlock(ip)
		k.FS.Put(ip)
		k.FS.Log.EndOp()
		return int64(defs.EISDIR)
	}
	if flags&OTrunc != 0 && writable && ip.Type() == defs.ItypeFile {
		k.FS.Truncate(ip)
	}
	k.FS.Unlock(ip)
	k.FS.Log.EndOp()

	p.Ofile[fd] = fs.NewInodeFile(k.FS, ip, readable, writable)
	return int64(fd)
}

func sysRead(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	fd := int(tf.ArgInt(0))
	va := tf.ArgAddr(1)
	n := int(tf.ArgInt(2))
	fh := fdFile(p, fd)
	if fh == nil {
		return int64(defs.EBADF)
	}
	buf := make([]byte, n)
	got, err := fh.Read(buf)
	if err != 0 {
		return int64(err)
	}
	if cerr := proc.CopyOut(p, va, buf[:got]); cerr != 0 {
		return int64(cerr)
	}
	return int64(got)
}

func sysWrite(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	fd := int(tf.ArgInt(0))
	va := tf.ArgAddr(1)
	n := int(tf.ArgInt(2))
	fh := fdFile(p, fd)
	if fh == nil {
		return int64(defs.EBADF)
	}
	src, err := proc.CopyIn(p, va, n)
	if err != 0 {
		return int64(err)
	}
	put, werr := fh.Write(src)
	if werr != 0 {
		return int64(werr)
	}
	return int64(put)
}

func sysClose(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	fd := int(tf.ArgInt(0))
	fh := fdFile(p, fd)
	if fh == nil {
		return int64(defs.EBADF)
	}
	fh.Close()
	p.Ofile[fd] = nil
	return 0
}

func sysDup(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	fd := int(tf.ArgInt(0))
	fh := fdFile(p, fd)
	if fh == nil {
		return int64(defs.EBADF)
	}
	newFd := findFreeFd(p)
	if newFd < 0 {
		return int64(defs.EMFILE)
	}
	p.Ofile[newFd] = fh.Dup()
	return int64(newFd)
}

func sysPipe(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	fdArrayVA := tf.ArgAddr(0)
	rfd := findFreeFd(p)
	if rfd < 0 {
		return int64(defs.EMFILE)
	}
	rd, wr := fs.NewPipe()
	p.Ofile[rfd] = rd
	wfd := findFreeFd(p)
	if wfd < 0 {
		p.Ofile[rfd] = nil
		rd.Close()
		wr.Close()
		return int64(defs.EMFILE)
	}
	p.Ofile[wfd] = wr

	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rfd))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(wfd))
	if err := proc.CopyOut(p, fdArrayVA, buf[:]); err != 0 {
		return int64(err)
	}
	return 0
}

func sysFstat(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	fd := int(tf.ArgInt(0))
	va := tf.ArgAddr(1)
	fh := fdFile(p, fd)
	if fh == nil || fh.Tag != fs.FileInode {
		return int64(defs.EBADF)
	}
	var st defs.Stat
	k.FS.Lock(fh.Ip)
	k.FS.Stat(fh.Ip, &st)
	k.FS.Unlock(fh.Ip)

	var buf [20]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(st.Dev))
	binary.LittleEndian.PutUint32(buf[4:8], st.Inum)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(st.Type))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(st.Nlink))
	binary.LittleEndian.PutUint32(buf[16:20], st.Size)
	if err := proc.CopyOut(p, va, buf[:]); err != 0 {
		return int64(err)
	}
	return 0
}

func sysLink(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	oldPath, err := proc.CopyInStr(p, tf.ArgAddr(0))
	if err != 0 {
		return int64(err)
	}
	newPath, err := proc.CopyInStr(p, tf.ArgAddr(1))
	if err != 0 {
		return int64(err)
	}

	k.FS.Log.BeginOp()
	defer k.FS.Log.EndOp()

	target, terr := k.FS.Namei(oldPath, k.Root, p.Cwd)
	if terr != 0 {
		return int64(terr)
	}
	k.FS.Lock(target)
	if target.Type() == defs.ItypeDir {
		k.FS.Unlock(target)
		k.FS.Put(target)
		return int64(defs.EINVAL)
	}
	inum := target.Inum()
	k.FS.Unlock(target)

	dir, name, perr := k.FS.NameiParent(newPath, k.Root, p.Cwd)
	if perr != 0 {
		k.FS.Put(target)
		return int64(perr)
	}
	k.FS.Lock(dir)
	lerr := k.FS.Link(dir, name, inum)
	k.FS.Unlock(dir)
	k.FS.Put(dir)
	if lerr != 0 {
		k.FS.Put(target)
		return int64(lerr)
	}

	k.FS.Lock(target)
	k.FS.IncNlink(target)
	k.FS.Unlock(target)
	k.FS.Put(target)
	return 0
}

func sysUnlink(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	path, err := proc.CopyInStr(p, tf.ArgAddr(0))
	if err != 0 {
		return int64(err)
	}
	k.FS.Log.BeginOp()
	defer k.FS.Log.EndOp()

	dir, name, perr := k.FS.NameiParent(path, k.Root, p.Cwd)
	if perr != 0 {
		return int64(perr)
	}
	k.FS.Lock(dir)
	uerr := k.FS.Unlink(dir, name)
	k.FS.Unlock(dir)
	k.FS.Put(dir)
	if uerr != 0 {
		return int64(uerr)
	}
	return 0
}

func sysMkdir(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	path, err := proc.CopyInStr(p, tf.ArgAddr(0))
	if err != 0 {
		return int64(err)
	}
	k.FS.Log.BeginOp()
	defer k.FS.Log.EndOp()
	ip, cerr := k.FS.Create(k.Root, p.Cwd, path, defs.ItypeDir, 0, 0, false)
	if cerr != 0 {
		return int64(cerr)
	}
	k.FS.Put(ip)
	return 0
}

func sysMknod(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	path, err := proc.CopyInStr(p, tf.ArgAddr(0))
	if err != 0 {
		return int64(err)
	}
	major := uint16(tf.ArgInt(1))
	minor := uint16(tf.ArgInt(2))
	k.FS.Log.BeginOp()
	defer k.FS.Log.EndOp()
	ip, cerr := k.FS.Create(k.Root, p.Cwd, path, defs.ItypeDev, major, minor, false)
	if cerr != 0 {
		return int64(cerr)
	}
	k.FS.Put(ip)
	return 0
}

func sysChdir(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	path, err := proc.CopyInStr(p, tf.ArgAddr(0))
	if err != 0 {
		return int64(err)
	}
	ip, nerr := k.FS.Namei(path, k.Root, p.Cwd)
	if nerr != 0 {
		return int64(nerr)
	}
	k.FS.Lock(ip)
	if ip.Type() != defs.ItypeDir {
		k.FS.Unlock(ip)
		k.FS.Put(ip)
		return int64(defs.ENOTDIR)
	}
	k.FS.Unlock(ip)

	old := p.Cwd
	p.Cwd = ip
	if old != nil {
		k.FS.Put(old)
	}
	return 0
}

func sysSymlink(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	target, err := proc.CopyInStr(p, tf.ArgAddr(0))
	if err != 0 {
		return int64(err)
	}
	path, perr := proc.CopyInStr(p, tf.ArgAddr(1))
	if perr != 0 {
		return int64(perr)
	}
	k.FS.Log.BeginOp()
	defer k.FS.Log.EndOp()
	if serr := k.FS.Symlink(target, path, k.Root, p.Cwd); serr != 0 {
		return int64(serr)
	}
	return 0
}

func sysReadlink(k *Kernel, cpu *proc.Cpu, p *proc.Proc, tf *proc.TrapFrame) int64 {
	path, err := proc.CopyInStr(p, tf.ArgAddr(0))
	if err != 0 {
		return int64(err)
	}
	va := tf.ArgAddr(1)
	n := int(tf.ArgInt(2))
	buf := make([]byte, n)
	got, rerr := k.FS.Readlink(path, buf, k.Root, p.Cwd)
	if rerr != 0 {
		return int64(rerr)
	}
	if cerr := proc.CopyOut(p, va, buf[:got]); cerr != 0 {
		return int64(cerr)
	}
	return int64(got)
}
