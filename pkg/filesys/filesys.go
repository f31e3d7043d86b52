// Copyright © 2018 One Concern

// Package filesys manages volumes: a header, a free map and a tree of inodes stored on a single device.
//
// A volume is laid out as follows:
//
//	sector 0                    header
//	sectors 1..B                free map bitmap
//	sector B+1                  root directory inode
//	remaining sectors           inodes, index and data sectors
//
// All transfers go through a buffer cache owned by the volume. Dirty sectors reach the device
// when they are evicted, when the cache is cleared, or at shutdown.
package filesys

import (
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oneconcern/sectorfs/pkg/bcache"
	"github.com/oneconcern/sectorfs/pkg/device"
	"github.com/oneconcern/sectorfs/pkg/dlogger"
	"github.com/oneconcern/sectorfs/pkg/filesys/status"
	"github.com/oneconcern/sectorfs/pkg/freemap"
	"github.com/oneconcern/sectorfs/pkg/inode"
	istatus "github.com/oneconcern/sectorfs/pkg/inode/status"
	"github.com/oneconcern/sectorfs/pkg/metrics"
)

type syncer interface {
	Sync() error
}

type statser interface {
	Stats() device.Stats
}

// FileSystem is a mounted volume
type FileSystem struct {
	dev    device.Device
	cache  *bcache.Cache
	store  *bcache.Bound
	fm     *freemap.Map
	inodes *inode.Table
	header Header
	down   atomic.Bool

	slots int
	l     *zap.Logger
	metrics.Enable
	m *M
}

// Stats reports about a mounted volume
type Stats struct {
	ID         string        `json:"id" yaml:"id"`
	Device     string        `json:"device" yaml:"device"`
	Sectors    uint32        `json:"sectors" yaml:"sectors"`
	Free       uint32        `json:"free" yaml:"free"`
	Used       uint32        `json:"used" yaml:"used"`
	Reserved   uint32        `json:"reserved" yaml:"reserved"`
	OpenInodes int           `json:"openInodes" yaml:"openInodes"`
	Cache      bcache.Stats  `json:"cache" yaml:"cache"`
	IO         *device.Stats `json:"io,omitempty" yaml:"io,omitempty"`
}

func newFileSystem(dev device.Device, opts []Option) *FileSystem {
	f := defaultsForFileSystem()
	for _, apply := range opts {
		apply(f)
	}
	f.l = dlogger.Component(f.l, "filesys").With(zap.Stringer("device", dev))
	f.dev = dev

	enabled := f.MetricsEnabled()
	if enabled {
		f.m = f.EnsureMetrics("filesys", &M{}).(*M)
	}
	f.cache = bcache.New(bcache.Slots(f.slots), bcache.Logger(f.l), bcache.WithMetrics(enabled))
	f.store = f.cache.Bind(dev)
	return f
}

func (f *FileSystem) attach(h Header) {
	f.header = h
	f.fm = freemap.New(f.store, h.Sectors, h.BitmapStart, freemap.Logger(f.l), freemap.WithMetrics(f.MetricsEnabled()))
	f.inodes = inode.NewTable(f.store, f.fm, inode.Logger(f.l), inode.WithMetrics(f.MetricsEnabled()))
}

// Format lays out a new volume over the whole device, with an empty root directory, and mounts it.
func Format(dev device.Device, opts ...Option) (*FileSystem, error) {
	f := newFileSystem(dev, opts)
	h, err := NewHeader(dev.Sectors())
	if err != nil {
		return nil, err
	}
	f.attach(h)

	if err = f.store.WriteSector(HeaderSector, h.encode()); err != nil {
		return nil, status.ErrIO.Wrap(err)
	}
	if err = f.fm.Mark(HeaderSector, h.Reserved()); err != nil {
		return nil, err
	}
	if err = f.fm.Create(); err != nil {
		return nil, status.ErrIO.Wrap(err)
	}
	if err = f.inodes.Create(h.Root, 0, true); err != nil {
		return nil, err
	}
	if err = f.cache.FlushAll(false); err != nil {
		return nil, status.ErrIO.Wrap(err)
	}

	f.l.Info("formatted",
		zap.Stringer("id", h.ID),
		zap.Uint32("sectors", h.Sectors),
		zap.Uint32("bitmap", h.BitmapSectors),
		zap.Uint32("free", f.fm.FreeCount()),
	)
	if f.MetricsEnabled() {
		f.m.Volume.Sectors.Remaining(int64(f.fm.FreeCount()))
	}
	return f, nil
}

// Mount opens a formatted volume
func Mount(dev device.Device, opts ...Option) (*FileSystem, error) {
	f := newFileSystem(dev, opts)

	buf := make([]byte, device.SectorSize)
	if err := f.store.ReadSector(HeaderSector, buf); err != nil {
		return nil, status.ErrIO.Wrap(err)
	}
	h, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if err = h.check(dev); err != nil {
		return nil, err
	}
	f.attach(h)

	if err = f.fm.Load(); err != nil {
		return nil, status.ErrIO.Wrap(err)
	}
	for s := HeaderSector; s < h.Reserved(); s++ {
		if !f.fm.IsAllocated(s) {
			return nil, status.ErrGeometry.Wrapf("reserved sector %d is free", s)
		}
	}
	root, err := f.inodes.Open(h.Root)
	if err != nil {
		return nil, err
	}
	isDir := root.IsDir()
	if err = root.Close(); err != nil {
		return nil, err
	}
	if !isDir {
		return nil, status.ErrGeometry.Wrapf("root inode %d is not a directory", h.Root)
	}

	f.l.Info("mounted", zap.Stringer("id", h.ID), zap.Uint32("free", f.fm.FreeCount()))
	return f, nil
}

// Shutdown persists the volume: the free map goes through the cache, then every dirty sector is written
// back and the device is synced.
//
// Inodes still open are left to their owners. The volume may not be used afterwards.
func (f *FileSystem) Shutdown() (err error) {
	if f.down.Swap(true) {
		return status.ErrShutdown
	}
	if n := f.inodes.OpenInodes(); n > 0 {
		f.l.Warn("shutting down with open inodes", zap.Int("open", n))
	}

	err = multierr.Append(err, f.fm.Close())
	err = multierr.Append(err, f.cache.FlushAll(true))
	if s, ok := f.dev.(syncer); ok {
		err = multierr.Append(err, s.Sync())
	}
	if err != nil {
		f.l.Error("shutdown", zap.Error(err))
		return status.ErrIO.Wrap(err)
	}
	f.l.Info("shut down", zap.Stringer("id", f.header.ID))
	return nil
}

func (f *FileSystem) checkUp() error {
	if f.down.Load() {
		return status.ErrShutdown
	}
	return nil
}

// Create allocates a new inode of length zeroed bytes and returns its sector.
func (f *FileSystem) Create(length int64, isDir bool) (sector uint32, err error) {
	if f.MetricsEnabled() {
		defer func(start time.Time) {
			f.m.Usage.UsedAll(start, "Create")(err)
		}(time.Now())
	}
	if err = f.checkUp(); err != nil {
		return 0, err
	}

	sector, ok := f.fm.Allocate(1)
	if !ok {
		return 0, istatus.ErrNoSpace.Wrapf("no sector left for an inode")
	}
	if err = f.inodes.Create(sector, length, isDir); err != nil {
		f.fm.Release(sector, 1)
		return 0, err
	}
	if f.MetricsEnabled() {
		f.m.Volume.Sectors.Remaining(int64(f.fm.FreeCount()))
	}
	return sector, nil
}

// Open an inode of this volume. The caller must close it.
func (f *FileSystem) Open(sector uint32) (*inode.Inode, error) {
	if err := f.checkUp(); err != nil {
		return nil, err
	}
	if sector < f.header.Root || sector >= f.header.Sectors || !f.fm.IsAllocated(sector) {
		return nil, status.ErrNotInode.Wrapf("sector %d", sector)
	}
	return f.inodes.Open(sector)
}

// Root opens the root directory
func (f *FileSystem) Root() (*inode.Inode, error) {
	return f.Open(f.header.Root)
}

// Remove deletes an inode. Its sectors are reclaimed once its last opener closes it.
func (f *FileSystem) Remove(sector uint32) (err error) {
	if f.MetricsEnabled() {
		defer func(start time.Time) {
			f.m.Usage.UsedAll(start, "Remove")(err)
		}(time.Now())
	}
	if sector == f.header.Root {
		return status.ErrRootRemoval
	}
	i, err := f.Open(sector)
	if err != nil {
		return err
	}
	i.Remove()
	return i.Close()
}

// Header of the mounted volume
func (f *FileSystem) Header() Header {
	return f.header
}

// Device holding the volume
func (f *FileSystem) Device() device.Device {
	return f.dev
}

// Stats reports the current state of the volume
func (f *FileSystem) Stats() Stats {
	s := Stats{
		ID:         f.header.ID.String(),
		Device:     f.dev.String(),
		Sectors:    f.header.Sectors,
		Free:       f.fm.FreeCount(),
		Used:       f.fm.Used(),
		Reserved:   f.header.Reserved(),
		OpenInodes: f.inodes.OpenInodes(),
		Cache:      f.cache.Stats(),
	}
	if d, ok := f.dev.(statser); ok {
		io := d.Stats()
		s.IO = &io
	}
	return s
}

// ClearCache writes back all dirty sectors and empties the cache, so that further reads hit the device
func (f *FileSystem) ClearCache() error {
	if err := f.checkUp(); err != nil {
		return err
	}
	return f.cache.FlushAll(true)
}
