// Copyright © 2018 One Concern

package filesys

import (
	"github.com/oneconcern/sectorfs/pkg/bcache"
	"github.com/oneconcern/sectorfs/pkg/dlogger"
	"go.uber.org/zap"
)

// Option to configure a volume
type Option func(*FileSystem)

// CacheSlots sets the number of sector buffers of the volume cache
func CacheSlots(n int) Option {
	return func(f *FileSystem) {
		if n > 0 {
			f.slots = n
		}
	}
}

// Logger sets a logger for this volume and its components
func Logger(l *zap.Logger) Option {
	return func(f *FileSystem) {
		if l != nil {
			f.l = l
		}
	}
}

// WithMetrics toggles metrics collection on this volume and its components
func WithMetrics(enabled bool) Option {
	return func(f *FileSystem) {
		f.EnableMetrics(enabled)
	}
}

func defaultsForFileSystem() *FileSystem {
	return &FileSystem{
		slots: bcache.DefaultSlots,
		l:     dlogger.MustGetLogger(dlogger.LogLevelInfo),
	}
}
