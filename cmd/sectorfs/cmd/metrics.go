// Copyright © 2018 One Concern

package cmd

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/sectorfs/pkg/metrics"
	"github.com/oneconcern/sectorfs/pkg/metrics/exporters/zaplog"
)

// M describes metrics for the cmd package
type M struct {
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for sectorfs CLI"`
}

var (
	cliMetrics     *M
	cliMetricsOnce sync.Once
)

// initMetrics reports all metrics to the logger, at debug level
func initMetrics(l *zap.Logger) {
	if !sectorfsFlags.root.metrics {
		return
	}
	cliMetricsOnce.Do(func() {
		metrics.Init(metrics.WithExporter(zaplog.NewExporter(l)))
		cliMetrics = metrics.EnsureMetrics("cli", &M{}).(*M)
	})
}

// cliUsage records a usage metric in the CLI context in a single go.
// This is intended to be used in some defer statement.
//
// Metrics are flushed as soon as the command is done.
func cliUsage(t0 time.Time, command string, err error) {
	if sectorfsFlags.root.metrics && cliMetrics != nil {
		cliMetrics.Usage.UsedAll(t0, command)(err)
		metrics.Flush()
	}
}
