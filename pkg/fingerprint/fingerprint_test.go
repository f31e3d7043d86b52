package fingerprint

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"

	"github.com/oneconcern/sectorfs/internal/rand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	payload := rand.Seeded(42).Bytes(300000)
	ctx := context.Background()

	digest, err := New().Sum(ctx, bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	assert.Len(t, digest, 64)

	again, err := New(NumberOfWorkers(1)).Sum(ctx, bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(digest), hex.EncodeToString(again), "independent of concurrency")

	payload[299999]++
	changed, err := New().Sum(ctx, bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	assert.NotEqual(t, digest, changed)

	other, err := New(LeafSize(4096)).Sum(ctx, bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	assert.NotEqual(t, changed, other, "leaf size is part of the digest")

	keyed, err := New(Key([]byte("secret"))).Sum(ctx, bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	assert.NotEqual(t, changed, keyed)

	short, err := New(Size(32)).Sum(ctx, bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	assert.Len(t, short, 32)
}

func TestSumEmpty(t *testing.T) {
	digest, err := New().Sum(context.Background(), bytes.NewReader(nil), 0)
	require.NoError(t, err)
	assert.Len(t, digest, 64)
}

func TestSumErrors(t *testing.T) {
	_, err := New(Size(65)).Sum(context.Background(), bytes.NewReader([]byte("x")), 1)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Sum(ctx, bytes.NewReader(make([]byte, 100000)), 100000)
	assert.ErrorIs(t, err, context.Canceled)
}
