// Copyright © 2018 One Concern

package inode

import (
	"github.com/oneconcern/sectorfs/pkg/metrics"
	"go.opencensus.io/stats"
)

// M describes metrics for the inode package
type M struct {
	Volume struct {
		Inodes  inodeUsage        `group:"inodes" description:"metrics about inode growth and reclamation"`
		Content metrics.IOMetrics `group:"content" description:"metrics about file content transfers"`
	} `group:"volumetry" description:""`
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for the inode package"`
}

type inodeUsage struct {
	Data     *stats.Int64Measure `metric:"dataSectors" description:"data sectors allocated or released" extraviews:"sum" tags:"operation"`
	Metadata *stats.Int64Measure `metric:"metadataSectors" description:"index sectors allocated or released" extraviews:"sum" tags:"operation"`
	Destroys *stats.Int64Measure `metric:"destroyed" description:"inodes reclaimed after removal" extraviews:"sum"`
}

func (m *inodeUsage) sectors(data, meta uint32, operation string) {
	tags := map[string]string{"operation": operation}
	metrics.Int64(m.Data, int64(data), tags)
	metrics.Int64(m.Metadata, int64(meta), tags)
}

func (m *inodeUsage) destroyed() {
	metrics.Inc(m.Destroys)
}
