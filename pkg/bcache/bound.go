// Copyright © 2018 One Concern

package bcache

import (
	"github.com/oneconcern/sectorfs/pkg/device"
)

// Bound is a view of the cache restricted to a single device
type Bound struct {
	c   *Cache
	dev device.Device
}

// Bind returns a view of the cache for a device
func (c *Cache) Bind(dev device.Device) *Bound {
	return &Bound{c: c, dev: dev}
}

// Device this view is bound to
func (b *Bound) Device() device.Device {
	return b.dev
}

// Cache this view is taken from
func (b *Bound) Cache() *Cache {
	return b.c
}

// Read a whole sector through the cache
func (b *Bound) Read(sector uint32, buf []byte) {
	b.c.Read(b.dev, sector, buf)
}

// Write a whole sector through the cache
func (b *Bound) Write(sector uint32, buf []byte) {
	b.c.Write(b.dev, sector, buf)
}

// ReadAt reads part of a sector through the cache
func (b *Bound) ReadAt(sector uint32, buf []byte, off int) {
	b.c.ReadAt(b.dev, sector, buf, off)
}

// WriteAt writes part of a sector through the cache
func (b *Bound) WriteAt(sector uint32, buf []byte, off int) {
	b.c.WriteAt(b.dev, sector, buf, off)
}

// ReadSector is like Read, but reports device failures as errors
func (b *Bound) ReadSector(sector uint32, buf []byte) error {
	mustFit(buf, 0)
	buffer, err := b.c.acquire(b.dev, sector)
	if err != nil {
		return err
	}
	copy(buf, buffer.data[:])
	b.c.Release(buffer)
	return nil
}

// WriteSector is like Write, but reports device failures as errors
func (b *Bound) WriteSector(sector uint32, buf []byte) error {
	mustFit(buf, 0)
	buffer, err := b.c.acquire(b.dev, sector)
	if err != nil {
		return err
	}
	copy(buffer.data[:], buf)
	buffer.MarkDirty()
	b.c.Release(buffer)
	return nil
}
