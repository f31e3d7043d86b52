// Copyright © 2018 One Concern

package bcache

import "go.uber.org/zap"

// DefaultSlots is the number of sector buffers held by a cache
const DefaultSlots = 64

// Option to configure the buffer cache
type Option func(*Cache)

// Slots sets the fixed number of sector buffers held by the cache. Values under 1 are ignored.
func Slots(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// Logger sets a logger for this cache
func Logger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.l = l
		}
	}
}

// WithMetrics toggles metrics collection on this cache
func WithMetrics(enabled bool) Option {
	return func(c *Cache) {
		c.EnableMetrics(enabled)
	}
}
