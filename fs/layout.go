// Package fs implements the log-backed inode filesystem of spec §4.3 and
// §4.4: allocation, locking, reference counting, multi-level block
// mapping, truncation, read/write, directories, and path resolution with
// symlinks. Grounded on original_source/xv6-riscv-riscv/kernel/fs.c and
// fs.h: NDIRECT=10, NINDIRECT=BSIZE/4, the 128-byte dinode layout, and the
// linear directory-entry scan.
package fs

import (
	"encoding/binary"

	"biscuit/defs"
)

const (
	RootIno = 1
	FSMagic = 0x10203040

	NDirect    = 10
	NIndirPtr  = defs.BlockSize / 4 // entries per indirect block: 1024
	MaxFile    = NDirect + NIndirPtr + NIndirPtr*NIndirPtr + NIndirPtr*NIndirPtr*NIndirPtr
	DinodeSize = 128
	DirentSize = 64
	DirSize    = 60 // name field width within a dirent; not NUL-terminated

	// addrs[] slot indices beyond the direct blocks.
	singleIndirect = NDirect
	doubleIndirect = NDirect + 1
	tripleIndirect = NDirect + 2
	numAddrs       = NDirect + 3
)

// Superblock is immutable after format (spec §3).
type Superblock struct {
	Magic      uint32
	Size       uint32 // total image size, in blocks
	NBlocks    uint32 // data blocks
	NInodes    uint32
	NLog       uint32
	LogStart   uint32
	InodeStart uint32
	BmapStart  uint32
	DataStart  uint32
}

func (sb *Superblock) IPB() uint32 { return defs.BlockSize / DinodeSize }

func (sb *Superblock) IBlock(inum uint32) uint32 {
	return inum/sb.IPB() + sb.InodeStart
}

func (sb *Superblock) BPB() uint32 { return defs.BlockSize * 8 }

func (sb *Superblock) BBlock(b uint32) uint32 {
	return b/sb.BPB() + sb.BmapStart
}

func (sb *Superblock) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:], sb.Magic)
	binary.LittleEndian.PutUint32(buf[4:], sb.Size)
	binary.LittleEndian.PutUint32(buf[8:], sb.NBlocks)
	binary.LittleEndian.PutUint32(buf[12:], sb.NInodes)
	binary.LittleEndian.PutUint32(buf[16:], sb.NLog)
	binary.LittleEndian.PutUint32(buf[20:], sb.LogStart)
	binary.LittleEndian.PutUint32(buf[24:], sb.InodeStart)
	binary.LittleEndian.PutUint32(buf[28:], sb.BmapStart)
	binary.LittleEndian.PutUint32(buf[32:], sb.DataStart)
}

func DecodeSuperblock(buf []byte) Superblock {
	var sb Superblock
	sb.Magic = binary.LittleEndian.Uint32(buf[0:])
	sb.Size = binary.LittleEndian.Uint32(buf[4:])
	sb.NBlocks = binary.LittleEndian.Uint32(buf[8:])
	sb.NInodes = binary.LittleEndian.Uint32(buf[12:])
	sb.NLog = binary.LittleEndian.Uint32(buf[16:])
	sb.LogStart = binary.LittleEndian.Uint32(buf[20:])
	sb.InodeStart = binary.LittleEndian.Uint32(buf[24:])
	sb.BmapStart = binary.LittleEndian.Uint32(buf[28:])
	sb.DataStart = binary.LittleEndian.Uint32(buf[32:])
	return sb
}

// Dinode is the fixed 128-byte on-disk inode record (spec §3).
type Dinode struct {
	Type  defs.Itype_t
	Major uint16
	Minor uint16
	Nlink uint16
	Size  uint32
	Addrs [numAddrs]uint32

	Mode   uint16
	Uid    uint16
	Atime  uint32
	Mtime  uint32
	Ctime  uint32
	Blocks uint32
}

func (d *Dinode) Encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:], uint16(d.Type))
	binary.LittleEndian.PutUint16(buf[2:], d.Major)
	binary.LittleEndian.PutUint16(buf[4:], d.Minor)
	binary.LittleEndian.PutUint16(buf[6:], d.Nlink)
	binary.LittleEndian.PutUint32(buf[8:], d.Size)
	for i, a := range d.Addrs {
		binary.LittleEndian.PutUint32(buf[12+4*i:], a)
	}
	o := 12 + 4*numAddrs
	binary.LittleEndian.PutUint16(buf[o:], d.Mode)
	binary.LittleEndian.PutUint16(buf[o+2:], d.Uid)
	binary.LittleEndian.PutUint32(buf[o+4:], d.Atime)
	binary.LittleEndian.PutUint32(buf[o+8:], d.Mtime)
	binary.LittleEndian.PutUint32(buf[o+12:], d.Ctime)
	binary.LittleEndian.PutUint32(buf[o+16:], d.Blocks)
}

func DecodeDinode(buf []byte) Dinode {
	var d Dinode
	d.Type = defs.Itype_t(binary.LittleEndian.Uint16(buf[0:]))
	d.Major = binary.LittleEndian.Uint16(buf[2:])
	d.Minor = binary.LittleEndian.Uint16(buf[4:])
	d.Nlink = binary.LittleEndian.Uint16(buf[6:])
	d.Size = binary.LittleEndian.Uint32(buf[8:])
	for i := range d.Addrs {
		d.Addrs[i] = binary.LittleEndian.Uint32(buf[12+4*i:])
	}
	o := 12 + 4*numAddrs
	d.Mode = binary.LittleEndian.Uint16(buf[o:])
	d.Uid = binary.LittleEndian.Uint16(buf[o+2:])
	d.Atime = binary.LittleEndian.Uint32(buf[o+4:])
	d.Mtime = binary.LittleEndian.Uint32(buf[o+8:])
	d.Ctime = binary.LittleEndian.Uint32(buf[o+12:])
	d.Blocks = binary.LittleEndian.Uint32(buf[o+16:])
	return d
}

// Dirent is a fixed-width directory entry: inode number (0 means a free
// slot) plus a DirSize-byte name field that is not NUL-terminated.
type Dirent struct {
	Inum uint16
	Name [DirSize]byte
}

func (de *Dirent) Encode(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:], de.Inum)
	copy(buf[2:2+DirSize], de.Name[:])
}

func DecodeDirent(buf []byte) Dirent {
	var de Dirent
	de.Inum = binary.LittleEndian.Uint16(buf[0:])
	copy(de.Name[:], buf[2:2+DirSize])
	return de
}

func (de *Dirent) NameString() string {
	n := 0
	for n < DirSize && de.Name[n] != 0 {
		n++
	}
	return string(de.Name[:n])
}

func setName(de *Dirent, name string) {
	var b [DirSize]byte
	copy(b[:], name)
	de.Name = b
}
