// Copyright © 2018 One Concern

package bcache

import (
	"github.com/oneconcern/sectorfs/pkg/metrics"
	"go.opencensus.io/stats"
)

// M describes metrics for the bcache package
type M struct {
	Volume struct {
		Cache cacheUsage        `group:"cache" description:"metrics about the sector buffer cache"`
		IO    metrics.IOMetrics `group:"io" description:"metrics about device transfers issued by the cache"`
	} `group:"volumetry" description:""`
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for the bcache package"`
}

type cacheUsage struct {
	Slots      *stats.Int64Measure `metric:"slots" description:"number of sector buffers in the cache" extraviews:"lastvalue"`
	Hits       *stats.Int64Measure `metric:"cacheHits" description:"requests served by a resident sector" extraviews:"sum" tags:"operation"`
	Misses     *stats.Int64Measure `metric:"cacheMisses" description:"requests that loaded a sector from the device" extraviews:"sum" tags:"operation"`
	Evictions  *stats.Int64Measure `metric:"evictions" description:"resident sectors replaced by another sector" extraviews:"sum"`
	WriteBacks *stats.Int64Measure `metric:"writeBacks" description:"dirty sectors written back to the device" extraviews:"sum" tags:"operation"`
	Stalls     *stats.Int64Measure `metric:"stalls" description:"requests that waited because every buffer was pinned" extraviews:"sum"`
}

func (m *cacheUsage) hit() {
	metrics.Inc(m.Hits, map[string]string{"operation": "acquire"})
}

func (m *cacheUsage) miss() {
	metrics.Inc(m.Misses, map[string]string{"operation": "acquire"})
}

func (m *cacheUsage) evict() {
	metrics.Inc(m.Evictions)
}

func (m *cacheUsage) writeBack(operation string) {
	metrics.Inc(m.WriteBacks, map[string]string{"operation": operation})
}

func (m *cacheUsage) stall() {
	metrics.Inc(m.Stalls)
}
