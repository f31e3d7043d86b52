// Copyright © 2018 One Concern

package freemap

import "go.uber.org/zap"

// Option to configure the free map
type Option func(*Map)

// Logger sets a logger for this free map
func Logger(l *zap.Logger) Option {
	return func(m *Map) {
		if l != nil {
			m.l = l
		}
	}
}

// WithMetrics toggles metrics collection on this free map
func WithMetrics(enabled bool) Option {
	return func(m *Map) {
		m.EnableMetrics(enabled)
	}
}
