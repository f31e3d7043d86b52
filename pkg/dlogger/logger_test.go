package dlogger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestGetLogger(t *testing.T) {
	for _, lvl := range []string{LogLevelInfo, LogLevelDebug, "warn", "error", " Debug ", ""} {
		l, err := GetLogger(lvl)
		require.NoError(t, err, lvl)
		require.NotNil(t, l)
	}

	l := MustGetLogger(LogLevelDebug)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l = MustGetLogger(LogLevelInfo)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l = MustGetLogger(LogLevelNone)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))

	_, err := GetLogger("chatty")
	assert.Error(t, err)
	assert.Panics(t, func() { _ = MustGetLogger("chatty") })
}

func TestComponent(t *testing.T) {
	assert.NotNil(t, Component(nil, "bcache"))
	assert.NotNil(t, Component(MustGetLogger(LogLevelNone), "bcache"))
}
