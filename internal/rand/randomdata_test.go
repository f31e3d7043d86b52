package rand

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandBytes(t *testing.T) {
	assert.Len(t, Bytes(513), 513)
	assert.Empty(t, Bytes(0))
	assert.False(t, bytes.Equal(Bytes(64), Bytes(64)))
}

func TestSeeded(t *testing.T) {
	a := Seeded(42).Bytes(1024)
	b := Seeded(42).Bytes(1024)
	assert.True(t, bytes.Equal(a, b))

	g := Seeded(7)
	for i := 0; i < 100; i++ {
		n := g.Intn(10)
		assert.True(t, n >= 0 && n < 10)
	}
}

func benchmarkRandBytes(b *testing.B, size int) {
	for n := 0; n < b.N; n++ {
		_ = randBytes(size)
	}
}

func BenchmarkRandBytes512(b *testing.B)  { benchmarkRandBytes(b, 512) }
func BenchmarkRandBytes4096(b *testing.B) { benchmarkRandBytes(b, 4096) }
