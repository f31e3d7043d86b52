// Copyright © 2018 One Concern

package inode

import (
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/oneconcern/sectorfs/pkg/device"
	"github.com/oneconcern/sectorfs/pkg/inode/status"
)

var (
	_ io.ReaderAt = &Inode{}
	_ io.WriterAt = &Inode{}
)

// Inode is an open inode, shared by all openers of its sector
type Inode struct {
	t      *Table
	sector uint32

	// guarded by the table lock
	openCnt int
	removed bool

	mx        sync.RWMutex
	d         disk
	denyWrite int
}

// Sector holding this inode, which also serves as its number
func (i *Inode) Sector() uint32 {
	return i.sector
}

// Reopen registers another opener of this inode
func (i *Inode) Reopen() *Inode {
	i.t.mx.Lock()
	defer i.t.mx.Unlock()
	if i.openCnt == 0 {
		panic(status.ErrNotOpen.Wrapf("inode %d", i.sector))
	}
	i.openCnt++
	if i.t.MetricsEnabled() {
		i.t.m.Usage.Inc("Reopen")
	}
	return i
}

// Close releases one opener. When the last opener of a removed inode closes it,
// all its sectors are released.
func (i *Inode) Close() error {
	if i == nil {
		return nil
	}
	t := i.t
	t.mx.Lock()
	defer t.mx.Unlock()

	if i.openCnt == 0 {
		panic(status.ErrNotOpen.Wrapf("inode %d", i.sector))
	}
	i.openCnt--
	if i.openCnt > 0 {
		return nil
	}
	delete(t.open, i.sector)
	if !i.removed {
		return nil
	}

	i.mx.Lock()
	defer i.mx.Unlock()
	return t.destroy(i.sector, &i.d)
}

// Remove marks the inode for deletion when its last opener closes it
func (i *Inode) Remove() {
	i.t.mx.Lock()
	defer i.t.mx.Unlock()
	i.removed = true
}

// IsRemoved tells if the inode is marked for deletion
func (i *Inode) IsRemoved() bool {
	i.t.mx.Lock()
	defer i.t.mx.Unlock()
	return i.removed
}

// OpenCount is the number of openers of this inode
func (i *Inode) OpenCount() int {
	i.t.mx.Lock()
	defer i.t.mx.Unlock()
	return i.openCnt
}

// Length of the file, in bytes
func (i *Inode) Length() int64 {
	i.mx.RLock()
	defer i.mx.RUnlock()
	return int64(i.d.Length)
}

// IsDir tells if the inode holds a directory
func (i *Inode) IsDir() bool {
	i.mx.RLock()
	defer i.mx.RUnlock()
	return i.d.IsDir != 0
}

// Sectors is the number of sectors used by this inode, including the inode and its index sectors
func (i *Inode) Sectors() uint32 {
	i.mx.RLock()
	defer i.mx.RUnlock()
	n := SectorsFor(int64(i.d.Length))
	return 1 + n + MetadataSectors(n)
}

// DenyWrite prevents writes, until a matching AllowWrite.
// Each opener may deny writes at most once.
func (i *Inode) DenyWrite() {
	i.t.mx.Lock()
	defer i.t.mx.Unlock()
	i.mx.Lock()
	defer i.mx.Unlock()

	if i.denyWrite >= i.openCnt {
		panic(status.ErrDenyWrite.Wrapf("inode %d denied %d times with %d openers", i.sector, i.denyWrite+1, i.openCnt))
	}
	i.denyWrite++
}

// AllowWrite lifts a previous DenyWrite
func (i *Inode) AllowWrite() {
	i.t.mx.Lock()
	defer i.t.mx.Unlock()
	i.mx.Lock()
	defer i.mx.Unlock()

	if i.denyWrite == 0 {
		panic(status.ErrDenyWrite.Wrapf("inode %d allowed without a deny", i.sector))
	}
	i.denyWrite--
}

// ReadAt reads up to len(p) bytes from offset off. Reading past the end of the file
// returns the bytes available, with io.EOF.
func (i *Inode) ReadAt(p []byte, off int64) (n int, err error) {
	if i.t.MetricsEnabled() {
		defer func(start time.Time) {
			i.t.m.Volume.Content.IORecord(start, "read")(int64(n), err)
		}(time.Now())
	}
	if off < 0 {
		return 0, status.ErrInvalidOffset.Wrapf("offset %d", off)
	}

	i.mx.RLock()
	defer i.mx.RUnlock()

	length := int64(i.d.Length)
	for n < len(p) && off < length {
		sector, ok := i.sectorFor(off)
		if !ok {
			panic(status.ErrCorrupt.Wrapf("inode %d has no sector at offset %d", i.sector, off))
		}
		within := int(off % device.SectorSize)
		chunk := minInt(len(p)-n, device.SectorSize-within)
		if left := length - off; int64(chunk) > left {
			chunk = int(left)
		}
		i.t.store.ReadAt(sector, p[n:n+chunk], within)
		n += chunk
		off += int64(chunk)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt writes p at offset off, growing the file as needed. New sectors are zero-filled,
// so that writing past the end leaves a hole of zeroes.
//
// When writes are denied or the file cannot grow, nothing is written.
func (i *Inode) WriteAt(p []byte, off int64) (n int, err error) {
	if i.t.MetricsEnabled() {
		defer func(start time.Time) {
			i.t.m.Volume.Content.IORecord(start, "write")(int64(n), err)
		}(time.Now())
	}
	if off < 0 {
		return 0, status.ErrInvalidOffset.Wrapf("offset %d", off)
	}

	i.mx.Lock()
	defer i.mx.Unlock()

	if i.denyWrite > 0 {
		return 0, status.ErrWriteDenied.Wrapf("inode %d", i.sector)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off > MaxLength-int64(len(p)) {
		return 0, status.ErrTooLarge.Wrapf("%d bytes at offset %d exceed %d", len(p), off, MaxLength)
	}
	if end := off + int64(len(p)); end > int64(i.d.Length) {
		if err = i.growTo(end); err != nil {
			return 0, err
		}
	}

	for n < len(p) {
		sector, ok := i.sectorFor(off)
		if !ok {
			panic(status.ErrCorrupt.Wrapf("inode %d has no sector at offset %d", i.sector, off))
		}
		within := int(off % device.SectorSize)
		chunk := minInt(len(p)-n, device.SectorSize-within)
		i.t.store.WriteAt(sector, p[n:n+chunk], within)
		n += chunk
		off += int64(chunk)
	}
	return n, nil
}

// growTo extends the file and persists its descriptor. Must be called with the inode locked.
func (i *Inode) growTo(length int64) error {
	if err := i.t.grow(&i.d, length); err != nil {
		return err
	}
	i.t.writeDisk(i.sector, &i.d)
	return nil
}

// sectorFor resolves a byte offset to the data sector holding it.
// Must be called with the inode locked.
func (i *Inode) sectorFor(off int64) (uint32, bool) {
	if off < 0 {
		return 0, false
	}
	block := uint32(off / device.SectorSize)
	if block >= SectorsFor(int64(i.d.Length)) {
		return 0, false
	}

	var sector uint32
	loc := locate(block)
	switch loc.kind {
	case direct:
		sector = i.d.Direct[loc.slot]
	case indirect:
		l1 := i.t.pointer(i.d.Indirect, loc.outer)
		sector = i.t.pointer(l1, loc.inner)
	default:
		panic(badLocation(loc))
	}
	return sector, sector != 0
}

// pointer reads one entry of an index sector
func (t *Table) pointer(sector uint32, slot int) uint32 {
	if sector == 0 {
		return 0
	}
	var buf [4]byte
	t.store.ReadAt(sector, buf[:], 4*slot)
	return binary.LittleEndian.Uint32(buf[:])
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
