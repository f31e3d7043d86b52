// Copyright © 2018 One Concern

// Package device exposes block devices addressed by fixed-size sectors.
//
// A device transfers exactly one sector at a time, synchronously. The only
// implementation provided here stores sectors in a file managed by afero, so
// the same code runs against a disk image or an in-memory file system.
package device

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/oneconcern/sectorfs/pkg/device/status"
	"github.com/spf13/afero"
	"go.uber.org/atomic"
)

// SectorSize is the size in bytes of a device sector
const SectorSize = 512

// Device is a block device addressed by sector number
type Device interface {
	// ReadSector reads one sector into buf, which must be SectorSize long
	ReadSector(sector uint32, buf []byte) error

	// WriteSector writes one sector from buf, which must be SectorSize long
	WriteSector(sector uint32, buf []byte) error

	// Sectors is the number of sectors on this device
	Sectors() uint32

	fmt.Stringer
}

// Stats counts the sector transfers performed by a device
type Stats struct {
	Reads  uint64 `json:"reads" yaml:"reads"`
	Writes uint64 `json:"writes" yaml:"writes"`
}

var _ Device = &File{}

// File is a device stored in a file
type File struct {
	mx      sync.Mutex
	f       afero.File
	name    string
	sectors uint32
	closed  bool

	reads  atomic.Uint64
	writes atomic.Uint64
}

func osFs(fs afero.Fs) afero.Fs {
	if fs == nil {
		return afero.NewOsFs()
	}
	return fs
}

// Create a zero-filled device file with the given number of sectors.
// An existing file is truncated.
func Create(fs afero.Fs, path string, sectors uint32) (*File, error) {
	if sectors == 0 {
		return nil, status.ErrEmptyDevice
	}
	f, err := osFs(fs).OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, status.ErrIO.Wrap(err)
	}
	if err = f.Truncate(int64(sectors) * SectorSize); err != nil {
		_ = f.Close()
		return nil, status.ErrIO.Wrap(err)
	}
	return &File{f: f, name: path, sectors: sectors}, nil
}

// Open an existing device file
func Open(fs afero.Fs, path string) (*File, error) {
	f, err := osFs(fs).OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, status.ErrIO.Wrap(err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, status.ErrIO.Wrap(err)
	}
	size := info.Size()
	switch {
	case size == 0:
		_ = f.Close()
		return nil, status.ErrEmptyDevice
	case size%SectorSize != 0:
		_ = f.Close()
		return nil, status.ErrGeometry.Wrapf("%s has %d bytes", path, size)
	case size/SectorSize > int64(^uint32(0)):
		_ = f.Close()
		return nil, status.ErrGeometry.Wrapf("%s is too large", path)
	}
	return &File{f: f, name: path, sectors: uint32(size / SectorSize)}, nil
}

func (d *File) check(sector uint32, buf []byte) error {
	if len(buf) != SectorSize {
		return status.ErrBufferSize.Wrapf("got %d bytes", len(buf))
	}
	if sector >= d.sectors {
		return status.ErrOutOfRange.Wrapf("sector %d on %s with %d sectors", sector, d.name, d.sectors)
	}
	if d.closed {
		return status.ErrClosed
	}
	return nil
}

// ReadSector reads one sector
func (d *File) ReadSector(sector uint32, buf []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()

	if err := d.check(sector, buf); err != nil {
		return err
	}
	n, err := d.f.ReadAt(buf, int64(sector)*SectorSize)
	if err == io.EOF && n == SectorSize {
		err = nil
	}
	if err != nil {
		return status.ErrIO.Wrap(err)
	}
	d.reads.Inc()
	return nil
}

// WriteSector writes one sector
func (d *File) WriteSector(sector uint32, buf []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()

	if err := d.check(sector, buf); err != nil {
		return err
	}
	if _, err := d.f.WriteAt(buf, int64(sector)*SectorSize); err != nil {
		return status.ErrIO.Wrap(err)
	}
	d.writes.Inc()
	return nil
}

// Sectors on this device
func (d *File) Sectors() uint32 {
	return d.sectors
}

// Stats returns the number of sectors read and written since the device was opened
func (d *File) Stats() Stats {
	return Stats{
		Reads:  d.reads.Load(),
		Writes: d.writes.Load(),
	}
}

// Sync commits the backing file to stable storage
func (d *File) Sync() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return status.ErrClosed
	}
	if err := d.f.Sync(); err != nil {
		return status.ErrIO.Wrap(err)
	}
	return nil
}

// Close the backing file. Closing twice is a no-op.
func (d *File) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.f.Close(); err != nil {
		return status.ErrIO.Wrap(err)
	}
	return nil
}

func (d *File) String() string {
	return d.name
}
