package fs

import (
	"sync"

	"biscuit/defs"
)

// FileTag distinguishes the three kinds of open file handle spec §3
// describes.
type FileTag int

const (
	FilePipe FileTag = iota
	FileInode
	FileDevice
)

// Device is the contract a device file's reads/writes are routed through;
// the console is the one device named by spec §6. Real device drivers are
// an external collaborator (spec §1); this is the narrow contract they
// must satisfy.
type Device interface {
	Read(dst []byte) (int, defs.Err_t)
	Write(src []byte) (int, defs.Err_t)
}

// File is the open-file-table entry of spec §3: a tag, permission flags,
// an inode-only offset, a reference count, and target-specific state.
type File struct {
	mu sync.Mutex

	Tag      FileTag
	Readable bool
	Writable bool
	refs     int

	// FileInode
	fs     *FS
	Ip     *Inode
	offset uint32

	// FilePipe
	pipe *pipe

	// FileDevice
	dev Device
}

func NewInodeFile(fsys *FS, ip *Inode, readable, writable bool) *File {
	return &File{Tag: FileInode, fs: fsys, Ip: ip, Readable: readable, Writable: writable, refs: 1}
}

func NewDeviceFile(dev Device, readable, writable bool) *File {
	return &File{Tag: FileDevice, dev: dev, Readable: readable, Writable: writable, refs: 1}
}

// Dup bumps the file's reference count and returns it (spec's dup(2)).
func (fh *File) Dup() *File {
	fh.mu.Lock()
	fh.refs++
	fh.mu.Unlock()
	return fh
}

// Close drops a reference; on the last reference an inode file's inode is
// released within its own transaction (Put may need to truncate and free
// it on disk) and a pipe's end is closed.
func (fh *File) Close() {
	fh.mu.Lock()
	fh.refs--
	last := fh.refs == 0
	fh.mu.Unlock()
	if !last {
		return
	}
	switch fh.Tag {
	case FileInode:
		fh.fs.Log.BeginOp()
		fh.fs.Lock(fh.Ip)
		fh.fs.Unlock(fh.Ip)
		fh.fs.Put(fh.Ip)
		fh.fs.Log.EndOp()
	case FilePipe:
		fh.pipe.closeEnd(fh.Writable)
	}
}

// Read dispatches to the inode, pipe, or device backing this handle,
// bounded by the handle's readable permission.
func (fh *File) Read(dst []byte) (int, defs.Err_t) {
	if !fh.Readable {
		return 0, defs.EBADF
	}
	switch fh.Tag {
	case FileInode:
		fh.fs.Lock(fh.Ip)
		n, err := fh.fs.Read(fh.Ip, dst, fh.offset, uint32(len(dst)))
		fh.offset += n
		fh.fs.Unlock(fh.Ip)
		return int(n), err
	case FilePipe:
		return fh.pipe.read(dst)
	case FileDevice:
		return fh.dev.Read(dst)
	}
	return 0, defs.EINVAL
}

// Write dispatches to the inode, pipe, or device backing this handle,
// bounded by the handle's writable permission. Inode writes run inside
// their own transaction (spec's begin_op/end_op bracket).
func (fh *File) Write(src []byte) (int, defs.Err_t) {
	if !fh.Writable {
		return 0, defs.EBADF
	}
	switch fh.Tag {
	case FileInode:
		fh.fs.Log.BeginOp()
		fh.fs.Lock(fh.Ip)
		n, err := fh.fs.Write(fh.Ip, src, fh.offset, uint32(len(src)))
		fh.offset += n
		fh.fs.Unlock(fh.Ip)
		fh.fs.Log.EndOp()
		return int(n), err
	case FilePipe:
		return fh.pipe.write(src)
	case FileDevice:
		return fh.dev.Write(src)
	}
	return 0, defs.EINVAL
}

// pipe is a small in-memory ring buffer shared by a read and a write File
// end, backing the pipe(2) syscall.
type pipe struct {
	mu         sync.Mutex
	buf        []byte
	head, tail int
	readOpen   bool
	writeOpen  bool
	notEmpty   chan struct{}
	notFull    chan struct{}
}

const pipeSize = defs.BlockSize

// NewPipe returns a connected (read-end, write-end) File pair.
func NewPipe() (*File, *File) {
	p := &pipe{
		buf:       make([]byte, pipeSize),
		readOpen:  true,
		writeOpen: true,
		notEmpty:  make(chan struct{}, 1),
		notFull:   make(chan struct{}, 1),
	}
	rd := &File{Tag: FilePipe, Readable: true, refs: 1, pipe: p}
	wr := &File{Tag: FilePipe, Writable: true, refs: 1, pipe: p}
	return rd, wr
}

func (p *pipe) closeEnd(writeEnd bool) {
	p.mu.Lock()
	if writeEnd {
		p.writeOpen = false
	} else {
		p.readOpen = false
	}
	p.mu.Unlock()
	nonBlockingSignal(p.notEmpty)
	nonBlockingSignal(p.notFull)
}

func nonBlockingSignal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (p *pipe) used() int {
	return p.head - p.tail
}

func (p *pipe) read(dst []byte) (int, defs.Err_t) {
	for {
		p.mu.Lock()
		if p.used() > 0 {
			n := copy(dst, p.buf[p.tail%len(p.buf):minInt(p.tail%len(p.buf)+p.used(), len(p.buf))])
			p.tail += n
			p.mu.Unlock()
			nonBlockingSignal(p.notFull)
			return n, 0
		}
		if !p.writeOpen {
			p.mu.Unlock()
			return 0, 0 // EOF
		}
		p.mu.Unlock()
		<-p.notEmpty
	}
}

func (p *pipe) write(src []byte) (int, defs.Err_t) {
	total := 0
	for total < len(src) {
		p.mu.Lock()
		if !p.readOpen {
			p.mu.Unlock()
			return total, defs.EIO
		}
		free := len(p.buf) - p.used()
		if free > 0 {
			n := minInt(free, len(src)-total)
			for i := 0; i < n; i++ {
				p.buf[(p.head+i)%len(p.buf)] = src[total+i]
			}
			p.head += n
			total += n
			p.mu.Unlock()
			nonBlockingSignal(p.notEmpty)
			continue
		}
		p.mu.Unlock()
		<-p.notFull
	}
	return total, 0
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
