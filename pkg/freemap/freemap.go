// Copyright © 2018 One Concern

// Package freemap tracks free sectors on a device with a bitmap.
//
// The bitmap holds one bit per sector, set when the sector is in use. It is
// kept in memory and persisted to consecutive sectors of the device, starting
// at a fixed sector. Every allocation or release writes back the bitmap
// sectors it changed.
package freemap

import (
	"fmt"
	"math/bits"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/sectorfs/pkg/device"
	"github.com/oneconcern/sectorfs/pkg/dlogger"
	"github.com/oneconcern/sectorfs/pkg/freemap/status"
	"github.com/oneconcern/sectorfs/pkg/metrics"
)

// Backend persists the bitmap sectors
type Backend interface {
	ReadSector(sector uint32, buf []byte) error
	WriteSector(sector uint32, buf []byte) error
}

// SectorsFor returns the number of sectors needed to store the bitmap of a device with total sectors
func SectorsFor(total uint32) uint32 {
	nbytes := (uint64(total) + 7) / 8
	return uint32((nbytes + device.SectorSize - 1) / device.SectorSize)
}

// Map is the free-space bitmap of a device
type Map struct {
	mx      sync.Mutex
	backend Backend
	start   uint32
	total   uint32
	free    uint32
	bitmap  []byte

	l *zap.Logger
	metrics.Enable
	m *M
}

func defaultsForMap() *Map {
	return &Map{
		l: dlogger.MustGetLogger(dlogger.LogLevelInfo),
	}
}

// New free map for total sectors, persisted from sector start onwards.
//
// All sectors are initially free: call Load to read the persisted state, or
// Mark then Create when formatting a device.
func New(backend Backend, total, start uint32, opts ...Option) *Map {
	m := defaultsForMap()
	for _, apply := range opts {
		apply(m)
	}
	m.l = dlogger.Component(m.l, "freemap")
	m.backend = backend
	m.total = total
	m.start = start
	m.free = total
	m.bitmap = make([]byte, int(SectorsFor(total))*device.SectorSize)

	if m.MetricsEnabled() {
		m.m = m.EnsureMetrics("freemap", &M{}).(*M)
	}
	return m
}

// Sectors occupied by the persisted bitmap
func (m *Map) Sectors() uint32 {
	return SectorsFor(m.total)
}

// Start is the first sector of the persisted bitmap
func (m *Map) Start() uint32 {
	return m.start
}

// Total number of sectors tracked by this map
func (m *Map) Total() uint32 {
	return m.total
}

// Allocate finds the first run of count consecutive free sectors and marks them in use.
//
// It returns the first sector of the run, or false when there is no such run or
// when the bitmap could not be persisted. In that case the map is left unchanged.
func (m *Map) Allocate(count uint32) (uint32, bool) {
	m.mx.Lock()
	defer m.mx.Unlock()
	first, err := m.allocate(count)
	return first, err == nil
}

// Release marks count sectors starting at first as free.
//
// All released sectors must be in use, or Release panics.
func (m *Map) Release(first, count uint32) {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.release(first, count)
}

// FreeCount is the number of free sectors
func (m *Map) FreeCount() uint32 {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.free
}

// Used is the number of sectors in use
func (m *Map) Used() uint32 {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.total - m.free
}

// IsAllocated tells if a sector is in use
func (m *Map) IsAllocated(sector uint32) bool {
	m.mx.Lock()
	defer m.mx.Unlock()
	return sector < m.total && m.isSet(sector)
}

// Snapshot returns a copy of the bitmap bytes covering all sectors
func (m *Map) Snapshot() []byte {
	m.mx.Lock()
	defer m.mx.Unlock()
	return append([]byte(nil), m.bitmap[:(m.total+7)/8]...)
}

// Mark reserves sectors regardless of their current state, without persisting.
//
// It is used when formatting a device, before Create.
func (m *Map) Mark(first, count uint32) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.checkRange(first, count); err != nil {
		return err
	}
	for s := first; s < first+count; s++ {
		if !m.isSet(s) {
			m.set(s)
			m.free--
		}
	}
	return nil
}

// Create persists the whole bitmap
func (m *Map) Create() error {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.persist(0, m.Sectors())
}

// Close persists the whole bitmap. The map remains usable.
func (m *Map) Close() error {
	return m.Create()
}

// Load reads the persisted bitmap and recomputes the free count
func (m *Map) Load() error {
	m.mx.Lock()
	defer m.mx.Unlock()

	n := m.Sectors()
	for i := uint32(0); i < n; i++ {
		lo := int(i) * device.SectorSize
		if err := m.backend.ReadSector(m.start+i, m.bitmap[lo:lo+device.SectorSize]); err != nil {
			return status.ErrLoad.Wrap(err)
		}
	}

	var used uint32
	full := m.total / 8
	for _, b := range m.bitmap[:full] {
		used += uint32(bits.OnesCount8(b))
	}
	for s := full * 8; s < m.total; s++ {
		if m.isSet(s) {
			used++
		}
	}
	m.free = m.total - used
	m.l.Debug("loaded", zap.Uint32("total", m.total), zap.Uint32("free", m.free))
	return nil
}

// Update runs fn with the map locked, so that several operations on the map appear atomic
// to other users. The transaction must not be used after fn returns.
func (m *Map) Update(fn func(*Tx) error) (err error) {
	if m.MetricsEnabled() {
		defer func(start time.Time) {
			m.m.Usage.UsedAll(start, "Update")(err)
		}(time.Now())
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	return fn(&Tx{m: m})
}

// Tx exposes the map operations to an Update function
type Tx struct {
	m *Map
}

// Allocate count consecutive sectors. See Map.Allocate.
func (tx *Tx) Allocate(count uint32) (uint32, error) {
	return tx.m.allocate(count)
}

// Release count consecutive sectors. See Map.Release.
func (tx *Tx) Release(first, count uint32) {
	tx.m.release(first, count)
}

// FreeCount is the number of free sectors
func (tx *Tx) FreeCount() uint32 {
	return tx.m.free
}

func (m *Map) allocate(count uint32) (uint32, error) {
	if count == 0 || count > m.free {
		return 0, status.ErrNoSpace
	}
	first, ok := m.scan(count)
	if !ok {
		return 0, status.ErrNoSpace
	}
	for s := first; s < first+count; s++ {
		m.set(s)
	}
	m.free -= count

	if err := m.persistBits(first, count); err != nil {
		for s := first; s < first+count; s++ {
			m.clear(s)
		}
		m.free += count
		m.l.Error("allocation rolled back", zap.Uint32("sector", first), zap.Uint32("count", count), zap.Error(err))
		return 0, err
	}

	if m.MetricsEnabled() {
		m.m.Volume.Sectors.Add(int64(count), "allocate")
		m.m.Volume.Sectors.Remaining(int64(m.free))
	}
	return first, nil
}

func (m *Map) release(first, count uint32) {
	if err := m.checkRange(first, count); err != nil {
		panic(err)
	}
	if count == 0 {
		return
	}
	for s := first; s < first+count; s++ {
		if !m.isSet(s) {
			panic(status.ErrNotAllocated.Wrapf("sector %d", s))
		}
	}
	for s := first; s < first+count; s++ {
		m.clear(s)
	}
	m.free += count

	if err := m.persistBits(first, count); err != nil {
		m.l.Error("released sectors not persisted", zap.Uint32("sector", first), zap.Uint32("count", count), zap.Error(err))
	}

	if m.MetricsEnabled() {
		m.m.Volume.Sectors.Add(int64(count), "release")
		m.m.Volume.Sectors.Remaining(int64(m.free))
	}
}

// scan looks for the first run of count clear bits
func (m *Map) scan(count uint32) (uint32, bool) {
	var run uint32
	for s := uint32(0); s < m.total; {
		if run == 0 && s%8 == 0 && s+8 <= m.total && m.bitmap[s/8] == 0xff {
			s += 8
			continue
		}
		if m.isSet(s) {
			run = 0
		} else {
			run++
			if run == count {
				return s + 1 - count, true
			}
		}
		s++
	}
	return 0, false
}

// persistBits writes back the bitmap sectors holding bits [first, first+count)
func (m *Map) persistBits(first, count uint32) error {
	lo := (first / 8) / device.SectorSize
	hi := ((first + count - 1) / 8) / device.SectorSize
	return m.persist(lo, hi-lo+1)
}

func (m *Map) persist(first, count uint32) error {
	for i := first; i < first+count; i++ {
		lo := int(i) * device.SectorSize
		if err := m.backend.WriteSector(m.start+i, m.bitmap[lo:lo+device.SectorSize]); err != nil {
			return status.ErrPersist.Wrap(err)
		}
	}
	return nil
}

func (m *Map) checkRange(first, count uint32) error {
	if uint64(first)+uint64(count) > uint64(m.total) {
		return status.ErrOutOfRange.Wrap(fmt.Errorf("%d sectors at %d, with %d sectors", count, first, m.total))
	}
	return nil
}

func (m *Map) isSet(s uint32) bool {
	return m.bitmap[s/8]&(1<<(s%8)) != 0
}

func (m *Map) set(s uint32) {
	m.bitmap[s/8] |= 1 << (s % 8)
}

func (m *Map) clear(s uint32) {
	m.bitmap[s/8] &^= 1 << (s % 8)
}
