// Copyright © 2018 One Concern

package inode

import (
	"encoding/binary"

	"github.com/oneconcern/sectorfs/pkg/device"
	"github.com/oneconcern/sectorfs/pkg/inode/status"
)

const (
	// Magic identifies a sector holding an inode
	Magic uint32 = 0x494e4f44

	// DirectBlocks is the number of data sectors addressed directly by an inode
	DirectBlocks = 124

	// PointersPerBlock is the number of sector pointers held by an index sector
	PointersPerBlock = device.SectorSize / 4

	// MaxBlocks is the largest number of data sectors of a file
	MaxBlocks = DirectBlocks + PointersPerBlock*PointersPerBlock

	// MaxLength is the largest length of a file, in bytes
	MaxLength = int64(MaxBlocks) * device.SectorSize
)

// disk is the on-disk inode, exactly one sector long.
//
// Layout (little endian):
//
//	length    int32
//	magic     uint32
//	isDir     uint32
//	direct    [124]uint32
//	indirect  uint32, the doubly indirect index sector
type disk struct {
	Length   int32
	Magic    uint32
	IsDir    uint32
	Direct   [DirectBlocks]uint32
	Indirect uint32
}

func (d *disk) encode() []byte {
	buf := make([]byte, device.SectorSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:], uint32(d.Length))
	le.PutUint32(buf[4:], d.Magic)
	le.PutUint32(buf[8:], d.IsDir)
	for i, p := range d.Direct {
		le.PutUint32(buf[12+4*i:], p)
	}
	le.PutUint32(buf[12+4*DirectBlocks:], d.Indirect)
	return buf
}

func decodeDisk(buf []byte) disk {
	le := binary.LittleEndian
	d := disk{
		Length: int32(le.Uint32(buf[0:])),
		Magic:  le.Uint32(buf[4:]),
		IsDir:  le.Uint32(buf[8:]),
	}
	for i := range d.Direct {
		d.Direct[i] = le.Uint32(buf[12+4*i:])
	}
	d.Indirect = le.Uint32(buf[12+4*DirectBlocks:])
	return d
}

// index is an index sector, at either level of the doubly indirect tree
type index [PointersPerBlock]uint32

func (x *index) encode() []byte {
	buf := make([]byte, device.SectorSize)
	for i, p := range x {
		binary.LittleEndian.PutUint32(buf[4*i:], p)
	}
	return buf
}

func decodeIndex(buf []byte) *index {
	var x index
	for i := range x {
		x[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	return &x
}

type level uint8

const (
	direct level = iota + 1
	indirect
)

// location of a data sector pointer in the index tree of an inode
type location struct {
	kind  level
	slot  int // direct pointer, for direct
	outer int // pointer in the doubly indirect sector, for indirect
	inner int // pointer in the indirect sector, for indirect
}

// locate maps the n-th data sector of a file to the pointer that addresses it
func locate(block uint32) location {
	if block < DirectBlocks {
		return location{kind: direct, slot: int(block)}
	}
	rel := block - DirectBlocks
	if rel >= PointersPerBlock*PointersPerBlock {
		panic(status.ErrTooLarge.Wrapf("data sector %d", block))
	}
	return location{kind: indirect, outer: int(rel / PointersPerBlock), inner: int(rel % PointersPerBlock)}
}

// leavesIndex tells if the traversal of n data sectors leaves an indirect sector after this location
func (l location) leavesIndex(block, n uint32) bool {
	return l.kind == indirect && (l.inner == PointersPerBlock-1 || block == n-1)
}

func badLocation(l location) error {
	return status.ErrCorrupt.Wrapf("unknown location kind %d", l.kind)
}

// SectorsFor returns the number of data sectors holding length bytes
func SectorsFor(length int64) uint32 {
	if length <= 0 {
		return 0
	}
	return uint32((length + device.SectorSize - 1) / device.SectorSize)
}

// MetadataSectors returns the number of index sectors needed to address n data sectors
func MetadataSectors(n uint32) uint32 {
	if n <= DirectBlocks {
		return 0
	}
	return 1 + (n-DirectBlocks+PointersPerBlock-1)/PointersPerBlock
}

// GrowthCost returns the number of sectors to allocate to grow a file from one length to another
func GrowthCost(from, to int64) uint32 {
	have, want := SectorsFor(from), SectorsFor(to)
	if want <= have {
		return 0
	}
	return want - have + MetadataSectors(want) - MetadataSectors(have)
}
