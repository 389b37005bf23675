package fs

import "biscuit/defs"

// Truncate frees every data block owned by ip and resets its size to
// zero; exposed for open's O_TRUNC flag. Caller holds ip's lock and an
// open transaction.
func (f *FS) Truncate(ip *Inode) {
	f.itruncate(ip)
}

// IncNlink bumps ip's on-disk link count, used by link(2) after a new
// directory entry is installed. Caller holds ip's lock and an open
// transaction.
func (f *FS) IncNlink(ip *Inode) {
	ip.dinode.Nlink++
	f.iupdate(ip)
}

// Stat fills in st from ip's current metadata (spec §6's fstat). Caller
// holds ip's lock.
func (f *FS) Stat(ip *Inode, st *defs.Stat) {
	st.Dev = f.Dev
	st.Inum = ip.inum
	st.Type = ip.dinode.Type
	st.Nlink = ip.dinode.Nlink
	st.Size = ip.dinode.Size
}

// SetDevice stamps major/minor onto a freshly allocated device inode.
// Caller holds ip's lock and an open transaction.
func (f *FS) SetDevice(ip *Inode, major, minor uint16) {
	ip.dinode.Major = major
	ip.dinode.Minor = minor
	f.iupdate(ip)
}

// Create implements the combined mkdir/mknod/creat path every one of
// those syscalls and open's O_CREATE share: resolve path's parent; if the
// name already exists, fail with EEXIST unless openExisting is set (open),
// in which case hand back the existing inode when its type is itype and
// fail with EINVAL otherwise; else allocate a fresh inode of
// itype, link it into the parent, and — for a directory — write its "."
// and ".." entries and bump the parent's link count for "..". Must run
// within a transaction. Grounded on
// original_source/xv6-riscv-riscv/kernel/sysfile.c's create().
func (f *FS) Create(root, cwd *Inode, path string, itype defs.Itype_t, major, minor uint16, openExisting bool) (*Inode, defs.Err_t) {
	dir, name, err := f.NameiParent(path, root, cwd)
	if err != 0 {
		return nil, err
	}
	if name == "" {
		f.Put(dir)
		return nil, defs.EINVAL
	}

	f.Lock(dir)
	if existing, _, ok := f.Lookup(dir, name); ok {
		f.Unlock(dir)
		f.Put(dir)
		if !openExisting {
			f.Put(existing)
			return nil, defs.EEXIST
		}
		f.Lock(existing)
		if existing.dinode.Type != itype && !(itype == defs.ItypeFile && existing.dinode.Type == defs.ItypeFile) {
			f.Unlock(existing)
			f.Put(existing)
			return nil, defs.EINVAL
		}
		f.Unlock(existing)
		return existing, 0
	}

	ip, aerr := f.Alloc(itype)
	if aerr != 0 {
		f.Unlock(dir)
		f.Put(dir)
		return nil, aerr
	}
	f.Lock(ip)
	if itype == defs.ItypeDev {
		f.SetDevice(ip, major, minor)
	}

	if itype == defs.ItypeDir {
		if derr := f.InitDir(ip, dir.inum); derr != 0 {
			f.Unlock(ip)
			f.Put(ip)
			f.Unlock(dir)
			f.Put(dir)
			return nil, derr
		}
		dir.dinode.Nlink++
		f.iupdate(dir)
	}

	if lerr := f.Link(dir, name, ip.inum); lerr != 0 {
		f.Unlock(ip)
		f.Put(ip)
		f.Unlock(dir)
		f.Put(dir)
		return nil, lerr
	}
	f.Unlock(ip)
	f.Unlock(dir)
	f.Put(dir)
	return ip, 0
}
