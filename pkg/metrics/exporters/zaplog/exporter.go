// Copyright © 2018 One Concern

// Package zaplog exports opencensus views to a zap logger.
package zaplog

import (
	"go.opencensus.io/stats/view"
	"go.uber.org/zap"
)

var _ view.Exporter = &Exporter{}

// NewExporter builds an opencensus exporter that logs view data at debug level
func NewExporter(l *zap.Logger) *Exporter {
	if l == nil {
		l = zap.NewNop()
	}
	return &Exporter{
		l: l.Named("metrics"),
	}
}

// Exporter logs opencensus views
type Exporter struct {
	l *zap.Logger
}

// ExportView logs one line per row of the view
func (e *Exporter) ExportView(viewData *view.Data) {
	if viewData == nil || viewData.View == nil {
		return
	}
	for _, row := range viewData.Rows {
		fields := make([]zap.Field, 0, len(row.Tags)+2)
		fields = append(fields, zap.String("view", viewData.View.Name))
		for _, t := range row.Tags {
			fields = append(fields, zap.String(t.Key.Name(), t.Value))
		}
		fields = append(fields, zap.Any("data", row.Data))
		e.l.Debug("metrics", fields...)
	}
}
