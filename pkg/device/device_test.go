package device

import (
	"bytes"
	"testing"

	"github.com/oneconcern/sectorfs/pkg/device/status"
	"github.com/oneconcern/sectorfs/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReadWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	d, err := Create(fs, "/disk.img", 16)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	assert.EqualValues(t, 16, d.Sectors())
	assert.Equal(t, "/disk.img", d.String())

	buf := make([]byte, SectorSize)
	require.NoError(t, d.ReadSector(15, buf))
	assert.Equal(t, make([]byte, SectorSize), buf, "a new device is zero-filled")

	payload := bytes.Repeat([]byte{0xa5}, SectorSize)
	require.NoError(t, d.WriteSector(3, payload))
	require.NoError(t, d.ReadSector(3, buf))
	assert.Equal(t, payload, buf)

	assert.Equal(t, Stats{Reads: 2, Writes: 1}, d.Stats())
	require.NoError(t, d.Sync())
}

func TestBounds(t *testing.T) {
	d, err := Create(afero.NewMemMapFs(), "disk", 4)
	require.NoError(t, err)

	buf := make([]byte, SectorSize)
	err = d.ReadSector(4, buf)
	assert.True(t, errors.Is(err, status.ErrOutOfRange))

	err = d.WriteSector(0, buf[:10])
	assert.True(t, errors.Is(err, status.ErrBufferSize))

	assert.Equal(t, Stats{}, d.Stats(), "failed transfers are not counted")

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.True(t, errors.Is(d.ReadSector(0, buf), status.ErrClosed))
}

func TestOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	d, err := Create(fs, "disk", 8)
	require.NoError(t, err)
	payload := bytes.Repeat([]byte("sector"), SectorSize/6+1)[:SectorSize]
	require.NoError(t, d.WriteSector(7, payload))
	require.NoError(t, d.Close())

	reopened, err := Open(fs, "disk")
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	assert.EqualValues(t, 8, reopened.Sectors())

	buf := make([]byte, SectorSize)
	require.NoError(t, reopened.ReadSector(7, buf))
	assert.Equal(t, payload, buf)

	_, err = Open(fs, "missing")
	assert.True(t, errors.Is(err, status.ErrIO))

	require.NoError(t, afero.WriteFile(fs, "odd", make([]byte, 700), 0o600))
	_, err = Open(fs, "odd")
	assert.True(t, errors.Is(err, status.ErrGeometry))

	require.NoError(t, afero.WriteFile(fs, "empty", nil, 0o600))
	_, err = Open(fs, "empty")
	assert.True(t, errors.Is(err, status.ErrEmptyDevice))

	_, err = Create(fs, "none", 0)
	assert.True(t, errors.Is(err, status.ErrEmptyDevice))
}
