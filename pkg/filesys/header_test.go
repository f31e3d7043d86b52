package filesys

import (
	"testing"

	"github.com/oneconcern/sectorfs/pkg/device"
	"github.com/oneconcern/sectorfs/pkg/errors"
	"github.com/oneconcern/sectorfs/pkg/filesys/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader(t *testing.T) {
	h, err := NewHeader(10000)
	require.NoError(t, err)
	assert.EqualValues(t, 3, h.BitmapSectors)
	assert.EqualValues(t, 4, h.Root)
	assert.EqualValues(t, 5, h.Reserved())
	assert.False(t, h.ID.IsNil())
	assert.Equal(t, h.Created, h.ID.Time().UTC())

	buf := h.encode()
	require.Len(t, buf, device.SectorSize)
	assert.Equal(t, "SECTORFS", string(buf[:8]))

	decoded, err := decodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)

	other, err := NewHeader(10000)
	require.NoError(t, err)
	assert.NotEqual(t, h.ID, other.ID, "each volume gets its own id")
}

func TestHeaderRejects(t *testing.T) {
	_, err := decodeHeader(make([]byte, device.SectorSize))
	assert.True(t, errors.Is(err, status.ErrNotFormatted))

	_, err = decodeHeader([]byte("SECTORFS"))
	assert.True(t, errors.Is(err, status.ErrNotFormatted), "truncated header")

	for _, sectors := range []uint32{0, 1, 2} {
		_, err = NewHeader(sectors)
		assert.True(t, errors.Is(err, status.ErrTooSmall), "%d sectors", sectors)
	}
	_, err = NewHeader(3)
	assert.NoError(t, err)
}
