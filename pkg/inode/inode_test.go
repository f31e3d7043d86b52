package inode

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"math/bits"
	"sync"
	"testing"

	"github.com/oneconcern/sectorfs/internal/rand"
	"github.com/oneconcern/sectorfs/pkg/bcache"
	"github.com/oneconcern/sectorfs/pkg/device"
	"github.com/oneconcern/sectorfs/pkg/dlogger"
	"github.com/oneconcern/sectorfs/pkg/errors"
	"github.com/oneconcern/sectorfs/pkg/freemap"
	"github.com/oneconcern/sectorfs/pkg/inode/status"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

var errInjected = errors.New("injected failure")

// flakyBackend persists the free map until its write budget runs out
type flakyBackend struct {
	freemap.Backend
	budget atomic.Int64
}

func (b *flakyBackend) WriteSector(sector uint32, buf []byte) error {
	if b.budget.Dec() < 0 {
		return errInjected
	}
	return b.Backend.WriteSector(sector, buf)
}

type fixture struct {
	dev   *device.File
	cache *bcache.Cache
	fm    *freemap.Map
	tbl   *Table
	flaky *flakyBackend
}

func newFixture(t testing.TB, sectors uint32) *fixture {
	nop := dlogger.MustGetLogger(dlogger.LogLevelNone)
	dev, err := device.Create(afero.NewMemMapFs(), "disk", sectors)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	c := bcache.New(bcache.Slots(32), bcache.Logger(nop))
	bound := c.Bind(dev)
	flaky := &flakyBackend{Backend: bound}
	flaky.budget.Store(1 << 40)

	fm := freemap.New(flaky, sectors, 1, freemap.Logger(nop))
	require.NoError(t, fm.Mark(0, 1+fm.Sectors()))
	require.NoError(t, fm.Create())

	return &fixture{
		dev:   dev,
		cache: c,
		fm:    fm,
		tbl:   NewTable(bound, fm, Logger(nop)),
		flaky: flaky,
	}
}

// requireConserved checks the free count against the bits set in the free map
func (f *fixture) requireConserved(t testing.TB) {
	t.Helper()
	var set uint32
	for _, b := range f.fm.Snapshot() {
		set += uint32(bits.OnesCount8(b))
	}
	require.Equal(t, f.fm.Total(), f.fm.FreeCount()+set)
}

func (f *fixture) create(t testing.TB, length int64) uint32 {
	s, ok := f.fm.Allocate(1)
	require.True(t, ok)
	require.NoError(t, f.tbl.Create(s, length, false))
	return s
}

func (f *fixture) open(t testing.TB, length int64) *Inode {
	i, err := f.tbl.Open(f.create(t, length))
	require.NoError(t, err)
	return i
}

func TestLayout(t *testing.T) {
	assert.Equal(t, device.SectorSize, binary.Size(disk{}))
	assert.Equal(t, device.SectorSize, binary.Size(index{}))
	assert.EqualValues(t, 128, PointersPerBlock)
	assert.EqualValues(t, 8452096, MaxLength)

	d := disk{Length: 300000, Magic: Magic, IsDir: 1, Indirect: 77}
	for i := range d.Direct {
		d.Direct[i] = uint32(1000 + i)
	}
	buf := d.encode()
	require.Len(t, buf, device.SectorSize)
	assert.Equal(t, d, decodeDisk(buf))

	var viaBinary bytes.Buffer
	require.NoError(t, binary.Write(&viaBinary, binary.LittleEndian, d))
	assert.Equal(t, viaBinary.Bytes(), buf, "the encoding is the packed little endian layout")

	var x index
	for i := range x {
		x[i] = uint32(i * 3)
	}
	assert.Equal(t, &x, decodeIndex(x.encode()))
}

func TestMetadataSectors(t *testing.T) {
	for _, tc := range []struct{ data, meta uint32 }{
		{0, 0},
		{1, 0},
		{DirectBlocks, 0},
		{DirectBlocks + 1, 2},
		{DirectBlocks + PointersPerBlock, 2},
		{DirectBlocks + PointersPerBlock + 1, 3},
		{MaxBlocks, 1 + PointersPerBlock},
	} {
		assert.Equal(t, tc.meta, MetadataSectors(tc.data), "for %d data sectors", tc.data)
	}

	assert.EqualValues(t, 0, SectorsFor(0))
	assert.EqualValues(t, 1, SectorsFor(1))
	assert.EqualValues(t, 1, SectorsFor(512))
	assert.EqualValues(t, 2, SectorsFor(513))

	boundary := int64(DirectBlocks * device.SectorSize)
	assert.EqualValues(t, 0, GrowthCost(10, 20))
	assert.EqualValues(t, 0, GrowthCost(20, 10))
	assert.EqualValues(t, 1, GrowthCost(0, 1))
	assert.EqualValues(t, DirectBlocks, GrowthCost(0, boundary))
	assert.EqualValues(t, 3, GrowthCost(boundary, boundary+1), "crossing into the tree costs both index levels")
	second := int64((DirectBlocks + PointersPerBlock) * device.SectorSize)
	assert.EqualValues(t, 2, GrowthCost(second, second+1), "a new indirect sector")
	assert.EqualValues(t, 586+5, GrowthCost(0, 300000))
}

func TestLocate(t *testing.T) {
	assert.Equal(t, location{kind: direct, slot: 0}, locate(0))
	assert.Equal(t, location{kind: direct, slot: 123}, locate(123))
	assert.Equal(t, location{kind: indirect, outer: 0, inner: 0}, locate(124))
	assert.Equal(t, location{kind: indirect, outer: 0, inner: 127}, locate(124+127))
	assert.Equal(t, location{kind: indirect, outer: 1, inner: 0}, locate(124+128))
	assert.Equal(t, location{kind: indirect, outer: 127, inner: 127}, locate(MaxBlocks-1))
	assert.Panics(t, func() { locate(MaxBlocks) })

	assert.True(t, locate(124+127).leavesIndex(124+127, 1000))
	assert.True(t, locate(130).leavesIndex(130, 131))
	assert.False(t, locate(130).leavesIndex(130, 1000))
	assert.False(t, locate(10).leavesIndex(10, 11))
}

func TestGrowthAccounting(t *testing.T) {
	f := newFixture(t, 2048)
	start := f.fm.FreeCount()

	i := f.open(t, 0)
	assert.Equal(t, start-1, f.fm.FreeCount(), "an empty file only holds its inode")

	length := int64(0)
	for _, next := range []int64{
		1, 512, 513,
		DirectBlocks * device.SectorSize,
		DirectBlocks*device.SectorSize + 1,
		(DirectBlocks + PointersPerBlock) * device.SectorSize,
		(DirectBlocks+PointersPerBlock)*device.SectorSize + 1,
		300000,
		300001,
	} {
		free := f.fm.FreeCount()
		n, err := i.WriteAt([]byte{1}, next-1)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		assert.Equal(t, next, i.Length())
		assert.Equal(t, GrowthCost(length, next), free-f.fm.FreeCount(), "growing from %d to %d", length, next)
		f.requireConserved(t)
		length = next
	}
	blocks := SectorsFor(length)
	assert.Equal(t, 1+blocks+MetadataSectors(blocks), i.Sectors())
	assert.Equal(t, start-i.Sectors(), f.fm.FreeCount())

	i.Remove()
	require.NoError(t, i.Close())
	assert.Equal(t, start, f.fm.FreeCount())
	f.requireConserved(t)
}

func TestRoundTrip(t *testing.T) {
	const size = 300000
	f := newFixture(t, 2048)
	start := f.fm.FreeCount()
	gen := rand.Seeded(300000)
	payload := gen.Bytes(size)

	i := f.open(t, 0)
	sector := i.Sector()
	for off := 0; off < size; {
		chunk := gen.Intn(1500) + 1
		if off+chunk > size {
			chunk = size - off
		}
		n, err := i.WriteAt(payload[off:off+chunk], int64(off))
		require.NoError(t, err)
		require.Equal(t, chunk, n)
		off += chunk
	}
	require.NoError(t, i.Close())
	assert.Equal(t, 0, f.tbl.OpenInodes())

	require.NoError(t, f.cache.FlushAll(true))
	reads := f.dev.Stats().Reads

	reopened, err := f.tbl.Open(sector)
	require.NoError(t, err)
	assert.EqualValues(t, size, reopened.Length())
	assert.False(t, reopened.IsDir())

	got := make([]byte, size)
	n, err := reopened.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, size, n)
	assert.True(t, bytes.Equal(payload, got))
	assert.Greater(t, f.dev.Stats().Reads, reads, "contents come back from the device")

	assert.Equal(t, start-1-586-5, f.fm.FreeCount())
	reopened.Remove()
	require.NoError(t, reopened.Close())
	assert.Equal(t, start, f.fm.FreeCount())
}

func TestHolesAndEOF(t *testing.T) {
	f := newFixture(t, 1024)
	i := f.open(t, 0)
	defer func() { _ = i.Close() }()

	n, err := i.WriteAt([]byte("0123456789"), 100000)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.EqualValues(t, 100010, i.Length())

	hole := make([]byte, 100000)
	n, err = i.ReadAt(hole, 0)
	require.NoError(t, err)
	assert.Equal(t, 100000, n)
	assert.Equal(t, make([]byte, 100000), hole)

	tail := make([]byte, 100)
	n, err = i.ReadAt(tail, 100005)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "56789", string(tail[:n]))

	n, err = i.ReadAt(tail, 100010)
	assert.Equal(t, io.EOF, err)
	assert.Zero(t, n)

	n, err = i.ReadAt(nil, 5)
	assert.NoError(t, err)
	assert.Zero(t, n)

	_, err = i.ReadAt(tail, -1)
	assert.True(t, errors.Is(err, status.ErrInvalidOffset))
	_, err = i.WriteAt(tail, -1)
	assert.True(t, errors.Is(err, status.ErrInvalidOffset))

	n, err = i.WriteAt(nil, 200000)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.EqualValues(t, 100010, i.Length(), "empty writes do not grow")

	for _, off := range []int64{math.MaxInt64 - 5, math.MaxInt64, MaxLength - 9} {
		n, err = i.WriteAt(make([]byte, 10), off)
		assert.True(t, errors.Is(err, status.ErrTooLarge), "offset %d", off)
		assert.Zero(t, n)
	}
	assert.EqualValues(t, 100010, i.Length())

	// overwrite within the file, across a sector boundary
	n, err = i.WriteAt([]byte("abcdef"), 509)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	check := make([]byte, 8)
	_, err = i.ReadAt(check, 508)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 'a', 'b', 'c', 'd', 'e', 'f', 0}, check)
}

func TestCreateWithLength(t *testing.T) {
	f := newFixture(t, 1024)
	start := f.fm.FreeCount()

	s := f.create(t, 70000)
	assert.Equal(t, start-1-GrowthCost(0, 70000), f.fm.FreeCount())

	i, err := f.tbl.Open(s)
	require.NoError(t, err)
	assert.EqualValues(t, 70000, i.Length())
	buf := make([]byte, 70000)
	n, err := i.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 70000, n)
	assert.Equal(t, make([]byte, 70000), buf)
	require.NoError(t, i.Close())

	d, ok := f.fm.Allocate(1)
	require.True(t, ok)
	require.NoError(t, f.tbl.Create(d, 0, true))
	dir, err := f.tbl.Open(d)
	require.NoError(t, err)
	assert.True(t, dir.IsDir())
	assert.Zero(t, dir.Length())
	require.NoError(t, dir.Close())

	err = f.tbl.Create(d, -1, false)
	assert.True(t, errors.Is(err, status.ErrInvalidOffset))
}

func TestOpenSharesInode(t *testing.T) {
	f := newFixture(t, 256)
	s := f.create(t, 10)

	a, err := f.tbl.Open(s)
	require.NoError(t, err)
	b, err := f.tbl.Open(s)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 2, a.OpenCount())
	assert.Same(t, a, a.Reopen())
	assert.Equal(t, 3, a.OpenCount())
	assert.Equal(t, 1, f.tbl.OpenInodes())

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Equal(t, 0, f.tbl.OpenInodes())
	assert.Panics(t, func() { _ = a.Close() })
	assert.Panics(t, func() { a.Reopen() })

	var nilInode *Inode
	assert.NoError(t, nilInode.Close())

	free, ok := f.fm.Allocate(1)
	require.True(t, ok)
	_, err = f.tbl.Open(free)
	assert.True(t, errors.Is(err, status.ErrNotInode))
}

func TestRemoveWhileOpen(t *testing.T) {
	f := newFixture(t, 1024)
	start := f.fm.FreeCount()

	i := f.open(t, 0)
	payload := rand.Bytes(80000)
	_, err := i.WriteAt(payload, 0)
	require.NoError(t, err)
	other := i.Reopen()
	used := f.fm.FreeCount()

	i.Remove()
	assert.True(t, other.IsRemoved())
	require.NoError(t, i.Close())
	assert.Equal(t, used, f.fm.FreeCount(), "sectors are held while the inode is open")

	got := make([]byte, len(payload))
	n, err := other.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.True(t, bytes.Equal(payload, got), "a removed file stays readable by its openers")

	require.NoError(t, other.Close())
	assert.Equal(t, start, f.fm.FreeCount(), "the last close reclaims every sector")
	assert.Equal(t, 0, f.tbl.OpenInodes())
}

func TestDestroyedInodeCannotBeOpened(t *testing.T) {
	f := newFixture(t, 512)
	start := f.fm.FreeCount()

	i := f.open(t, 0)
	sector := i.Sector()
	_, err := i.WriteAt(rand.Bytes(4000), 0)
	require.NoError(t, err)
	i.Remove()
	require.NoError(t, i.Close())
	require.Equal(t, start, f.fm.FreeCount())
	require.False(t, f.fm.IsAllocated(sector))

	_, err = f.tbl.Open(sector)
	assert.True(t, errors.Is(err, status.ErrNotInode), "a free sector is not an inode")

	again, ok := f.fm.Allocate(1)
	require.True(t, ok)
	require.Equal(t, sector, again)
	_, err = f.tbl.Open(sector)
	assert.True(t, errors.Is(err, status.ErrNotInode), "the descriptor is cleared on destroy")

	f.fm.Release(again, 1)
	assert.Equal(t, start, f.fm.FreeCount())
	assert.Zero(t, f.tbl.OpenInodes())
}

func TestDenyWrite(t *testing.T) {
	f := newFixture(t, 256)
	i := f.open(t, 0)
	defer func() { _ = i.Close() }()

	i.DenyWrite()
	n, err := i.WriteAt([]byte("denied"), 0)
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, status.ErrWriteDenied))
	assert.Zero(t, i.Length())

	assert.Panics(t, func() { i.DenyWrite() }, "a single opener may deny once")

	j := i.Reopen()
	j.DenyWrite()
	j.AllowWrite()
	i.AllowWrite()
	require.NoError(t, j.Close())
	assert.Panics(t, func() { i.AllowWrite() })

	n, err = i.WriteAt([]byte("allowed"), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestNoSpace(t *testing.T) {
	f := newFixture(t, 200)
	i := f.open(t, 0)
	defer func() { _ = i.Close() }()

	free := f.fm.FreeCount()
	assert.EqualValues(t, 200-3, free)
	before := f.fm.Snapshot()

	// the data would fit, not the index sectors
	n, err := i.WriteAt([]byte{1}, int64(free)*device.SectorSize-1)
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, status.ErrNoSpace))
	assert.Zero(t, i.Length())
	assert.Equal(t, before, f.fm.Snapshot())

	largest := int64(free-2) * device.SectorSize
	n, err = i.WriteAt([]byte{1}, largest-1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, f.fm.FreeCount())
	assert.Equal(t, largest, i.Length())

	// the last sector still has room
	_, err = i.WriteAt([]byte{2}, largest-2)
	require.NoError(t, err)
	_, err = i.WriteAt([]byte{3}, largest)
	assert.True(t, errors.Is(err, status.ErrNoSpace))
}

func TestGrowthRollsBack(t *testing.T) {
	f := newFixture(t, 1024)
	i := f.open(t, 0)
	_, err := i.WriteAt(bytes.Repeat([]byte{7}, 1000), 0)
	require.NoError(t, err)

	free := f.fm.FreeCount()
	before := f.fm.Snapshot()

	f.flaky.budget.Store(130) // fails in the middle of the indirect sectors
	n, err := i.WriteAt([]byte{1}, 200*device.SectorSize)
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, status.ErrNoSpace))
	f.flaky.budget.Store(1 << 40)

	assert.Equal(t, free, f.fm.FreeCount())
	assert.Equal(t, before, f.fm.Snapshot())
	assert.EqualValues(t, 1000, i.Length())

	sector := i.Sector()
	require.NoError(t, i.Close())
	reopened, err := f.tbl.Open(sector)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, reopened.Length(), "the descriptor is untouched")

	n, err = reopened.WriteAt([]byte{1}, 200*device.SectorSize)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	reopened.Remove()
	require.NoError(t, reopened.Close())
}

func TestMaxLength(t *testing.T) {
	if testing.Short() {
		t.Skip("fills an 8MB file")
	}
	f := newFixture(t, 17000)
	start := f.fm.FreeCount()

	_, ok := f.fm.Allocate(1)
	require.True(t, ok)
	s, ok := f.fm.Allocate(1)
	require.True(t, ok)
	err := f.tbl.Create(s, MaxLength+1, false)
	assert.True(t, errors.Is(err, status.ErrTooLarge))
	assert.Equal(t, start-2, f.fm.FreeCount())

	require.NoError(t, f.tbl.Create(s, MaxLength, false))
	assert.Equal(t, start-2-MaxBlocks-MetadataSectors(MaxBlocks), f.fm.FreeCount())

	i, err := f.tbl.Open(s)
	require.NoError(t, err)
	_, err = i.WriteAt([]byte("end"), MaxLength-3)
	require.NoError(t, err)
	_, err = i.WriteAt([]byte{1}, MaxLength)
	assert.True(t, errors.Is(err, status.ErrTooLarge))
	n, err := i.WriteAt(make([]byte, 10), math.MaxInt64-5)
	assert.True(t, errors.Is(err, status.ErrTooLarge))
	assert.Zero(t, n)

	last := make([]byte, 4)
	n, err = i.ReadAt(last, MaxLength-4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0, 'e', 'n', 'd'}, last)

	i.Remove()
	require.NoError(t, i.Close())
	assert.Equal(t, start-1, f.fm.FreeCount())
}

func TestConcurrentWriters(t *testing.T) {
	const (
		writers = 8
		region  = 40 * device.SectorSize
	)
	f := newFixture(t, 2048)
	start := f.fm.FreeCount()
	i := f.open(t, 0)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			j := i.Reopen()
			defer func() { _ = j.Close() }()
			payload := bytes.Repeat([]byte{byte(w + 1)}, region)
			// writers race to extend the same file past the direct sectors
			for off := 0; off < region; off += 1000 {
				end := off + 1000
				if end > region {
					end = region
				}
				n, err := j.WriteAt(payload[off:end], int64(w*region+off))
				assert.NoError(t, err)
				assert.Equal(t, end-off, n)
			}
		}(w)
	}
	wg.Wait()

	assert.EqualValues(t, writers*region, i.Length())
	assert.Equal(t, start-1-GrowthCost(0, writers*region), f.fm.FreeCount())

	got := make([]byte, region)
	for w := 0; w < writers; w++ {
		n, err := i.ReadAt(got, int64(w*region))
		require.NoError(t, err)
		require.Equal(t, region, n)
		assert.Equal(t, bytes.Repeat([]byte{byte(w + 1)}, region), got, "region %d", w)
	}
	i.Remove()
	require.NoError(t, i.Close())
	assert.Equal(t, start, f.fm.FreeCount())
}

func TestMetricsEnabled(t *testing.T) {
	f := newFixture(t, 512)
	tbl := NewTable(f.cache.Bind(f.dev), f.fm, WithMetrics(true), Logger(dlogger.MustGetLogger(dlogger.LogLevelNone)))
	require.NotNil(t, tbl.m)

	s, ok := f.fm.Allocate(1)
	require.True(t, ok)
	require.NoError(t, tbl.Create(s, 0, false))
	i, err := tbl.Open(s)
	require.NoError(t, err)
	_, err = i.WriteAt(rand.Bytes(70000), 0)
	require.NoError(t, err)
	_, err = i.ReadAt(make([]byte, 10), 0)
	require.NoError(t, err)
	require.NoError(t, i.Reopen().Close())
	_, err = tbl.Open(0)
	assert.Error(t, err)
	i.Remove()
	require.NoError(t, i.Close())
}
