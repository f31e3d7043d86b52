// Copyright © 2018 One Concern

// Package bcache implements a fixed-size buffer cache of device sectors.
//
// Every sector transfer of the storage engine goes through the cache. A caller
// acquires a buffer, which pins it and gives the caller exclusive ownership
// of the sector contents, then releases it. Buffers are recycled in least
// recently used order and dirty buffers are written back to their device
// when evicted or flushed.
//
// Locking uses two tiers: a pool lock guards the recency list and the
// sector to buffer mapping, and a lock per buffer guards its contents.
// The pool lock is never held while blocking on a buffer lock: buffers are
// only ever try-locked under the pool lock, and a caller that must wait on
// a buffer releases the pool lock first. Such a waiter registers a pending
// claim on the buffer before releasing the pool lock, and evictions skip
// buffers with pending claims, so that the buffer still holds the requested
// sector when ownership is handed over.
package bcache

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oneconcern/sectorfs/pkg/bcache/status"
	"github.com/oneconcern/sectorfs/pkg/device"
	"github.com/oneconcern/sectorfs/pkg/dlogger"
	"github.com/oneconcern/sectorfs/pkg/metrics"
)

type key struct {
	dev    device.Device
	sector uint32
}

// placeholder keys stand for empty buffers, so the recency list always holds every buffer
func placeholder(index int) key {
	return key{sector: uint32(index)}
}

// Buffer holds the contents of one sector while pinned by its owner.
//
// The key and empty fields are only modified while holding both the pool
// lock and the buffer lock.
type Buffer struct {
	mx      sync.Mutex
	pending atomic.Int32

	index int
	key   key
	empty bool
	dirty bool
	data  [device.SectorSize]byte
}

// Bytes exposes the sector contents. The slice must not be retained after Release.
func (b *Buffer) Bytes() []byte {
	return b.data[:]
}

// MarkDirty flags the contents for write-back
func (b *Buffer) MarkDirty() {
	b.dirty = true
}

// Sector held by this buffer
func (b *Buffer) Sector() uint32 {
	return b.key.sector
}

// Device the held sector belongs to
func (b *Buffer) Device() device.Device {
	return b.key.dev
}

// Stats counts cache activity
type Stats struct {
	Slots      int    `json:"slots" yaml:"slots"`
	Resident   int    `json:"resident" yaml:"resident"`
	Hits       uint64 `json:"hits" yaml:"hits"`
	Misses     uint64 `json:"misses" yaml:"misses"`
	Evictions  uint64 `json:"evictions" yaml:"evictions"`
	WriteBacks uint64 `json:"writeBacks" yaml:"writeBacks"`
	Stalls     uint64 `json:"stalls" yaml:"stalls"`
}

// Cache is a fixed pool of sector buffers
type Cache struct {
	mx       sync.Mutex
	capacity int
	slots    []*Buffer
	lru      *simplelru.LRU

	l *zap.Logger
	metrics.Enable
	m *M

	hits       atomic.Uint64
	misses     atomic.Uint64
	evictions  atomic.Uint64
	writeBacks atomic.Uint64
	stalls     atomic.Uint64
}

func defaultsForCache() *Cache {
	return &Cache{
		capacity: DefaultSlots,
		l:        dlogger.MustGetLogger(dlogger.LogLevelInfo),
	}
}

// New buffer cache, with all buffers initially empty
func New(opts ...Option) *Cache {
	c := defaultsForCache()
	for _, apply := range opts {
		apply(c)
	}
	c.l = dlogger.Component(c.l, "bcache")

	lru, err := simplelru.NewLRU(c.capacity, nil)
	if err != nil {
		panic(err) // capacity is always positive
	}
	c.lru = lru
	c.slots = make([]*Buffer, c.capacity)
	for i := range c.slots {
		b := &Buffer{index: i, key: placeholder(i), empty: true}
		c.slots[i] = b
		c.lru.Add(b.key, b)
	}

	if c.MetricsEnabled() {
		c.m = c.EnsureMetrics("bcache", &M{}).(*M)
		metrics.Int64(c.m.Volume.Cache.Slots, int64(c.capacity))
	}
	return c
}

// Acquire returns the buffer holding the current contents of a sector, pinned
// for the exclusive use of the caller until Release.
//
// Acquire blocks until the sector is available. When every buffer is pinned,
// it waits for the least recently used buffer to be released. A caller must
// not acquire a sector it already holds.
//
// Acquire panics if the device fails to transfer a sector.
func (c *Cache) Acquire(dev device.Device, sector uint32) *Buffer {
	b, err := c.acquire(dev, sector)
	if err != nil {
		panic(err)
	}
	return b
}

// Release unpins a buffer. Dirty contents stay in the cache until eviction or flush.
func (c *Cache) Release(b *Buffer) {
	b.mx.Unlock()
}

func (c *Cache) acquire(dev device.Device, sector uint32) (*Buffer, error) {
	if dev == nil {
		return nil, status.ErrNoDevice
	}
	k := key{dev: dev, sector: sector}

	c.mx.Lock()
	for {
		if v, ok := c.lru.Get(k); ok {
			b := v.(*Buffer)
			b.pending.Inc()
			c.mx.Unlock()

			b.mx.Lock()
			b.pending.Dec()
			c.hit()
			return b, nil
		}

		if b := c.victim(); b != nil {
			err := c.load(b, k)
			c.mx.Unlock()
			if err != nil {
				b.mx.Unlock()
				return nil, err
			}
			return b, nil
		}

		// every buffer is pinned: wait for the least recently used one
		c.stall()
		_, v, _ := c.lru.GetOldest()
		b := v.(*Buffer)
		c.mx.Unlock()

		b.mx.Lock()
		c.mx.Lock()
		if c.lru.Contains(k) || b.pending.Load() > 0 {
			// loaded meanwhile, or promised to another waiter
			b.mx.Unlock()
			continue
		}
		err := c.load(b, k)
		c.mx.Unlock()
		if err != nil {
			b.mx.Unlock()
			return nil, err
		}
		return b, nil
	}
}

// victim returns a locked, unclaimed buffer, scanning from the least recently used.
//
// Must be called with the pool lock held.
func (c *Cache) victim() *Buffer {
	for _, k := range c.lru.Keys() {
		v, _ := c.lru.Peek(k)
		b := v.(*Buffer)
		if b.pending.Load() > 0 {
			continue
		}
		if b.mx.TryLock() {
			return b
		}
	}
	return nil
}

// load recycles a buffer to hold another sector, writing back its former contents when dirty.
//
// Must be called with the pool lock and the buffer lock held. On failure, the buffer
// either keeps its former dirty contents or is left empty.
func (c *Cache) load(b *Buffer, k key) error {
	if !b.empty {
		if b.dirty {
			if err := b.key.dev.WriteSector(b.key.sector, b.data[:]); err != nil {
				c.l.Error("write back failed", zap.Stringer("device", b.key.dev), zap.Uint32("sector", b.key.sector), zap.Error(err))
				return status.ErrDeviceIO.Wrap(err)
			}
			b.dirty = false
			c.writeBack("evict")
		}
		c.l.Debug("evict", zap.Int("slot", b.index), zap.Uint32("sector", b.key.sector), zap.Uint32("for", k.sector))
		c.evict()
	}

	c.lru.Remove(b.key)
	if err := k.dev.ReadSector(k.sector, b.data[:]); err != nil {
		b.key = placeholder(b.index)
		b.empty = true
		c.lru.Add(b.key, b)
		c.l.Error("read failed", zap.Stringer("device", k.dev), zap.Uint32("sector", k.sector), zap.Error(err))
		return status.ErrDeviceIO.Wrap(err)
	}
	b.key = k
	b.empty = false
	b.dirty = false
	c.lru.Add(k, b)
	c.miss()
	return nil
}

// FlushAll writes back every dirty buffer. With discard, resident sectors are
// also dropped from the cache.
//
// Each buffer is flushed in turn, waiting for its owner to release it if pinned.
// Write-back errors do not stop the flush: they are all reported together.
func (c *Cache) FlushAll(discard bool) (errs error) {
	if c.MetricsEnabled() {
		defer func(start time.Time) {
			c.m.Usage.UsedAll(start, "FlushAll")(errs)
		}(time.Now())
	}
	for _, b := range c.slots {
		b.mx.Lock()
		if !b.empty && b.dirty {
			if err := b.key.dev.WriteSector(b.key.sector, b.data[:]); err != nil {
				errs = multierr.Append(errs, status.ErrDeviceIO.Wrap(fmt.Errorf("sector %d on %v: %w", b.key.sector, b.key.dev, err)))
			} else {
				b.dirty = false
				c.writeBack("flush")
			}
		}
		if discard && !b.empty && !b.dirty {
			c.mx.Lock()
			if b.pending.Load() == 0 {
				c.lru.Remove(b.key)
				b.key = placeholder(b.index)
				b.empty = true
				c.lru.Add(b.key, b)
			}
			c.mx.Unlock()
		}
		b.mx.Unlock()
	}
	if errs != nil {
		c.l.Error("flush incomplete", zap.Error(errs))
	}
	return errs
}

// Stats returns counters about the cache activity
func (c *Cache) Stats() Stats {
	c.mx.Lock()
	resident := 0
	for _, b := range c.slots {
		if !b.empty {
			resident++
		}
	}
	c.mx.Unlock()

	return Stats{
		Slots:      c.capacity,
		Resident:   resident,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
		WriteBacks: c.writeBacks.Load(),
		Stalls:     c.stalls.Load(),
	}
}

// Read copies a whole sector into buf
func (c *Cache) Read(dev device.Device, sector uint32, buf []byte) {
	c.ReadAt(dev, sector, buf, 0)
}

// Write copies buf over a whole sector
func (c *Cache) Write(dev device.Device, sector uint32, buf []byte) {
	c.WriteAt(dev, sector, buf, 0)
}

// ReadAt copies len(buf) bytes of a sector, starting at byte offset off
func (c *Cache) ReadAt(dev device.Device, sector uint32, buf []byte, off int) {
	mustFit(buf, off)
	b := c.Acquire(dev, sector)
	copy(buf, b.data[off:])
	c.Release(b)
}

// WriteAt copies buf into a sector, starting at byte offset off
func (c *Cache) WriteAt(dev device.Device, sector uint32, buf []byte, off int) {
	mustFit(buf, off)
	b := c.Acquire(dev, sector)
	copy(b.data[off:], buf)
	b.MarkDirty()
	c.Release(b)
}

func mustFit(buf []byte, off int) {
	if off < 0 || off+len(buf) > device.SectorSize {
		panic(status.ErrOutOfRange.Wrap(fmt.Errorf("%d bytes at offset %d", len(buf), off)))
	}
}

func (c *Cache) hit() {
	c.hits.Inc()
	if c.MetricsEnabled() {
		c.m.Volume.Cache.hit()
	}
}

func (c *Cache) miss() {
	c.misses.Inc()
	if c.MetricsEnabled() {
		c.m.Volume.Cache.miss()
		c.m.Volume.IO.Size(device.SectorSize, "read")
	}
}

func (c *Cache) evict() {
	c.evictions.Inc()
	if c.MetricsEnabled() {
		c.m.Volume.Cache.evict()
	}
}

func (c *Cache) writeBack(operation string) {
	c.writeBacks.Inc()
	if c.MetricsEnabled() {
		c.m.Volume.Cache.writeBack(operation)
		c.m.Volume.IO.Size(device.SectorSize, "write")
	}
}

func (c *Cache) stall() {
	c.stalls.Inc()
	if c.MetricsEnabled() {
		c.m.Volume.Cache.stall()
	}
}
