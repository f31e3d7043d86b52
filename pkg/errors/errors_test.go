package errors

import (
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
}

func TestWrapKeepsSentinel(t *testing.T) {
	sentinel := New("no space")
	wrapped := sentinel.Wrap(io.ErrShortWrite)

	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, Is(wrapped, io.ErrShortWrite))
	assert.Nil(t, sentinel.Unwrap(), "wrapping must not alter the sentinel")
	assert.Equal(t, "no space", sentinel.Error())
	assert.Equal(t, "no space: short write", wrapped.Error())

	rewrapped := wrapped.Wrapf("sector %d", 12)
	assert.True(t, Is(rewrapped, sentinel))
	assert.Equal(t, "no space: sector 12", rewrapped.Error())

	var target *Error
	require.True(t, As(rewrapped, &target))
	assert.False(t, Is(New("no space"), sentinel))
}

func TestWrapConcurrently(t *testing.T) {
	sentinel := New("device")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := sentinel.Wrapf("worker")
			assert.True(t, Is(err, sentinel))
		}()
	}
	wg.Wait()
	assert.Nil(t, sentinel.Unwrap())
}
