// Copyright © 2018 One Concern

package inode

import "go.uber.org/zap"

// Option to configure an inode table
type Option func(*Table)

// Logger sets a logger for this table
func Logger(l *zap.Logger) Option {
	return func(t *Table) {
		if l != nil {
			t.l = l
		}
	}
}

// WithMetrics toggles metrics collection on this table
func WithMetrics(enabled bool) Option {
	return func(t *Table) {
		t.EnableMetrics(enabled)
	}
}
