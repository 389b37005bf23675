package fs

import "biscuit/defs"

// Lookup scans dir's entries linearly for name, returning the matching
// inode (referenced, not locked) and its byte offset within dir, or
// ok=false on a miss (spec §4.4). Caller must hold dir's lock.
func (f *FS) Lookup(dir *Inode, name string) (*Inode, uint32, bool) {
	if dir.dinode.Type != defs.ItypeDir {
		return nil, 0, false
	}
	var de Dirent
	buf := make([]byte, DirentSize)
	for off := uint32(0); off < dir.dinode.Size; off += DirentSize {
		n, err := f.Read(dir, buf, off, DirentSize)
		if err != 0 || n != DirentSize {
			break
		}
		de = DecodeDirent(buf)
		if de.Inum == 0 {
			continue
		}
		if de.NameString() == name {
			return f.Get(uint32(de.Inum)), off, true
		}
	}
	return nil, 0, false
}

// Link writes a new directory entry (name -> inum) into dir, reusing a
// free slot if one exists, rejecting a duplicate name. Must run within a
// transaction. Caller holds dir's lock.
func (f *FS) Link(dir *Inode, name string, inum uint32) defs.Err_t {
	if len(name) > DirSize {
		return defs.ENAMETOOLONG
	}
	if existing, _, ok := f.Lookup(dir, name); ok {
		f.Put(existing)
		return defs.EEXIST
	}

	var de Dirent
	buf := make([]byte, DirentSize)
	off := uint32(0)
	found := false
	for ; off < dir.dinode.Size; off += DirentSize {
		n, err := f.Read(dir, buf, off, DirentSize)
		if err != 0 || n != DirentSize {
			return defs.EIO
		}
		de = DecodeDirent(buf)
		if de.Inum == 0 {
			found = true
			break
		}
	}
	_ = found // off now names either a free slot or one-past-the-end

	de = Dirent{Inum: uint16(inum)}
	setName(&de, name)
	de.Encode(buf)
	if _, err := f.Write(dir, buf, off, DirentSize); err != 0 {
		return err
	}
	return 0
}

// Unlink removes name from dir: "." and ".." are rejected, a non-empty
// directory target is rejected, the entry is zeroed, and the target's
// link count is decremented. Must run within a transaction. Caller holds
// dir's lock.
func (f *FS) Unlink(dir *Inode, name string) defs.Err_t {
	if name == "." || name == ".." {
		return defs.EINVAL
	}
	target, off, ok := f.Lookup(dir, name)
	if !ok {
		return defs.ENOENT
	}
	f.Lock(target)
	if target.dinode.Type == defs.ItypeDir && !f.dirEmpty(target) {
		f.Unlock(target)
		f.Put(target)
		return defs.EINVAL
	}

	var de Dirent
	buf := make([]byte, DirentSize)
	de.Encode(buf)
	if _, err := f.Write(dir, buf, off, DirentSize); err != 0 {
		f.Unlock(target)
		f.Put(target)
		return err
	}

	if target.dinode.Nlink == 0 {
		f.Unlock(target)
		f.Put(target)
		panic("fs: unlink: link count underflow")
	}
	target.dinode.Nlink--
	f.iupdate(target)
	f.Unlock(target)
	f.Put(target)
	return 0
}

// dirEmpty reports whether dir has any entries beyond "." and "..".
func (f *FS) dirEmpty(dir *Inode) bool {
	buf := make([]byte, DirentSize)
	for off := uint32(2 * DirentSize); off < dir.dinode.Size; off += DirentSize {
		n, err := f.Read(dir, buf, off, DirentSize)
		if err != 0 || n != DirentSize {
			return true
		}
		de := DecodeDirent(buf)
		if de.Inum != 0 {
			return false
		}
	}
	return true
}

// InitDir writes the "." and ".." entries for a freshly allocated
// directory inode whose parent is parentInum (itself for the root).
func (f *FS) InitDir(dir *Inode, parentInum uint32) defs.Err_t {
	if err := f.Link(dir, ".", dir.inum); err != 0 {
		return err
	}
	if err := f.Link(dir, "..", parentInum); err != 0 {
		return err
	}
	return 0
}
