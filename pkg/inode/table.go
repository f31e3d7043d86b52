// Copyright © 2018 One Concern

// Package inode lays out files on a device with indexed inodes.
//
// An inode occupies one sector. It addresses its first 124 data sectors
// directly, and up to 128*128 more through a doubly indirect tree of index
// sectors. Index sectors are allocated only when a file grows past the direct
// pointers, and each one is released when its file is destroyed.
//
// All sector transfers go through a Store, normally the buffer cache, and
// sectors are allocated from a free map. Files grow when written past their
// end, and are destroyed when removed and closed by their last opener.
//
// Locks are taken in this order: table, inode, free map, then the store's own locks.
package inode

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/sectorfs/pkg/device"
	"github.com/oneconcern/sectorfs/pkg/dlogger"
	"github.com/oneconcern/sectorfs/pkg/freemap"
	"github.com/oneconcern/sectorfs/pkg/inode/status"
	"github.com/oneconcern/sectorfs/pkg/metrics"
)

// Store transfers sectors, panicking on device failures
type Store interface {
	Read(sector uint32, buf []byte)
	Write(sector uint32, buf []byte)
	ReadAt(sector uint32, buf []byte, off int)
	WriteAt(sector uint32, buf []byte, off int)
}

// Table keeps track of open inodes, so that all openers of a sector share the same inode
type Table struct {
	mx    sync.Mutex
	open  map[uint32]*Inode
	store Store
	fm    *freemap.Map

	l *zap.Logger
	metrics.Enable
	m *M
}

func defaultsForTable() *Table {
	return &Table{
		open: make(map[uint32]*Inode),
		l:    dlogger.MustGetLogger(dlogger.LogLevelInfo),
	}
}

// NewTable builds an inode table over a store and a free map of the same device
func NewTable(store Store, fm *freemap.Map, opts ...Option) *Table {
	t := defaultsForTable()
	for _, apply := range opts {
		apply(t)
	}
	t.l = dlogger.Component(t.l, "inode")
	t.store = store
	t.fm = fm

	if t.MetricsEnabled() {
		t.m = t.EnsureMetrics("inode", &M{}).(*M)
	}
	return t
}

// Create writes a new inode at sector, with length bytes of zeroes.
//
// The inode sector itself must have been allocated by the caller. On failure, no
// other sector remains allocated.
func (t *Table) Create(sector uint32, length int64, isDir bool) (err error) {
	if t.MetricsEnabled() {
		defer func(start time.Time) {
			t.m.Usage.UsedAll(start, "Create")(err)
		}(time.Now())
	}
	d := disk{Magic: Magic}
	if isDir {
		d.IsDir = 1
	}
	if err = t.grow(&d, length); err != nil {
		return err
	}
	t.writeDisk(sector, &d)
	t.l.Debug("created", zap.Uint32("inode", sector), zap.Int64("length", length), zap.Bool("dir", isDir))
	return nil
}

// Open returns the inode stored at sector, shared with any other opener.
//
// The sector must be allocated in the free map and hold an inode descriptor.
func (t *Table) Open(sector uint32) (_ *Inode, err error) {
	if t.MetricsEnabled() {
		defer func(start time.Time) {
			t.m.Usage.UsedAll(start, "Open")(err)
		}(time.Now())
	}
	t.mx.Lock()
	defer t.mx.Unlock()

	if i, ok := t.open[sector]; ok {
		i.openCnt++
		return i, nil
	}
	if !t.fm.IsAllocated(sector) {
		return nil, status.ErrNotInode.Wrapf("sector %d is free", sector)
	}

	buf := make([]byte, device.SectorSize)
	t.store.Read(sector, buf)
	d := decodeDisk(buf)
	if d.Magic != Magic {
		return nil, status.ErrNotInode.Wrapf("sector %d", sector)
	}
	if d.Length < 0 || int64(d.Length) > MaxLength {
		return nil, status.ErrCorrupt.Wrapf("inode %d has length %d", sector, d.Length)
	}

	i := &Inode{
		t:       t,
		sector:  sector,
		openCnt: 1,
		d:       d,
	}
	t.open[sector] = i
	return i, nil
}

// OpenInodes is the number of distinct inodes currently open
func (t *Table) OpenInodes() int {
	t.mx.Lock()
	defer t.mx.Unlock()
	return len(t.open)
}

func (t *Table) writeDisk(sector uint32, d *disk) {
	t.store.Write(sector, d.encode())
}

func (t *Table) readIndex(sector uint32) *index {
	if sector == 0 {
		panic(status.ErrCorrupt.Wrapf("missing index sector"))
	}
	buf := make([]byte, device.SectorSize)
	t.store.Read(sector, buf)
	return decodeIndex(buf)
}

func (t *Table) writeIndex(sector uint32, x *index) {
	t.store.Write(sector, x.encode())
}

var zeroes = make([]byte, device.SectorSize)

func (t *Table) zero(sector uint32) {
	t.store.Write(sector, zeroes)
}
