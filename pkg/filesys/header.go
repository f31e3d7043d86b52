// Copyright © 2018 One Concern

package filesys

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/oneconcern/sectorfs/pkg/device"
	"github.com/oneconcern/sectorfs/pkg/filesys/status"
	"github.com/oneconcern/sectorfs/pkg/freemap"
	"github.com/segmentio/ksuid"
)

const (
	// HeaderSector is where the volume header lives
	HeaderSector uint32 = 0

	// BitmapStart is the first sector of the free map
	BitmapStart uint32 = 1

	// Version of the volume layout
	Version uint32 = 1
)

var magic = [8]byte{'S', 'E', 'C', 'T', 'O', 'R', 'F', 'S'}

// Header describes a volume. It is stored in the first sector of the device.
type Header struct {
	Version       uint32      `json:"version" yaml:"version"`
	Sectors       uint32      `json:"sectors" yaml:"sectors"`
	BitmapStart   uint32      `json:"bitmapStart" yaml:"bitmapStart"`
	BitmapSectors uint32      `json:"bitmapSectors" yaml:"bitmapSectors"`
	Root          uint32      `json:"root" yaml:"root"`
	ID            ksuid.KSUID `json:"id" yaml:"id"`
	Created       time.Time   `json:"created" yaml:"created"`
}

// header is the packed layout of a Header
type header struct {
	Magic         [8]byte
	Version       uint32
	Sectors       uint32
	BitmapStart   uint32
	BitmapSectors uint32
	Root          uint32
	ID            [20]byte
	Created       int64
}

// NewHeader lays out a volume of some size
func NewHeader(sectors uint32) (Header, error) {
	bitmap := freemap.SectorsFor(sectors)
	h := Header{
		Version:       Version,
		Sectors:       sectors,
		BitmapStart:   BitmapStart,
		BitmapSectors: bitmap,
		Root:          BitmapStart + bitmap,
		Created:       time.Now().UTC().Truncate(time.Second),
	}
	if uint64(h.Root) >= uint64(sectors) {
		return Header{}, status.ErrTooSmall.Wrapf("%d sectors, need at least %d", sectors, h.Root+1)
	}
	id, err := ksuid.NewRandomWithTime(h.Created)
	if err != nil {
		return Header{}, err
	}
	h.ID = id
	return h, nil
}

// Reserved is the number of sectors at the start of the volume used by its header, free map and root inode
func (h Header) Reserved() uint32 {
	return h.Root + 1
}

func (h Header) encode() []byte {
	var buf bytes.Buffer
	buf.Grow(device.SectorSize)
	_ = binary.Write(&buf, binary.LittleEndian, header{
		Magic:         magic,
		Version:       h.Version,
		Sectors:       h.Sectors,
		BitmapStart:   h.BitmapStart,
		BitmapSectors: h.BitmapSectors,
		Root:          h.Root,
		ID:            h.ID,
		Created:       h.Created.Unix(),
	})
	buf.Write(make([]byte, device.SectorSize-buf.Len()))
	return buf.Bytes()
}

func decodeHeader(buf []byte) (Header, error) {
	var raw header
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw); err != nil {
		return Header{}, status.ErrNotFormatted.Wrap(err)
	}
	if raw.Magic != magic {
		return Header{}, status.ErrNotFormatted.Wrapf("bad magic %q", raw.Magic[:])
	}
	if raw.Version != Version {
		return Header{}, status.ErrVersion.Wrapf("version %d", raw.Version)
	}
	return Header{
		Version:       raw.Version,
		Sectors:       raw.Sectors,
		BitmapStart:   raw.BitmapStart,
		BitmapSectors: raw.BitmapSectors,
		Root:          raw.Root,
		ID:            ksuid.KSUID(raw.ID),
		Created:       time.Unix(raw.Created, 0).UTC(),
	}, nil
}

// check validates the layout against a device
func (h Header) check(dev device.Device) error {
	want, err := NewHeader(h.Sectors)
	switch {
	case err != nil:
		return status.ErrGeometry.Wrap(err)
	case h.Sectors != dev.Sectors():
		return status.ErrGeometry.Wrapf("volume has %d sectors, %v has %d", h.Sectors, dev, dev.Sectors())
	case h.BitmapStart != want.BitmapStart || h.BitmapSectors != want.BitmapSectors || h.Root != want.Root:
		return status.ErrGeometry.Wrapf("unexpected layout: bitmap at %d (%d sectors), root at %d",
			h.BitmapStart, h.BitmapSectors, h.Root)
	}
	return nil
}
