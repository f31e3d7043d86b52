// Copyright © 2018 One Concern

package metrics

import (
	"time"

	"go.opencensus.io/stats"
)

// SectorMetrics is a common set of metrics reporting about sector activity on a volume
type SectorMetrics struct {
	Count *stats.Int64Measure `metric:"sectorCount" description:"number of sectors" extraviews:"sum" tags:"kind,operation"`
	Level *stats.Int64Measure `metric:"sectorLevel" description:"sectors available after the operation" extraviews:"lastvalue" tags:"kind"`
}

func (f *SectorMetrics) tags(operation string) map[string]string {
	return map[string]string{"kind": "sector", "operation": operation}
}

// Add records a number of sectors affected by some operation
func (f *SectorMetrics) Add(count int64, operation string) {
	Int64(f.Count, count, f.tags(operation))
}

// Remaining records the current level of available sectors
func (f *SectorMetrics) Remaining(level int64) {
	Int64(f.Level, level, map[string]string{"kind": "sector"})
}

// IOMetrics is a common set of metrics reporting about IO activity
type IOMetrics struct {
	Count    *stats.Int64Measure   `metric:"ioCount" description:"number of IO requests" tags:"kind,operation"`
	Timing   *stats.Float64Measure `metric:"timing" unit:"milliseconds" description:"response time in milliseconds" tags:"kind,operation"`
	Failures *stats.Int64Measure   `metric:"ioFailures" description:"number of failed IOs" tags:"kind,operation"`
	IOSize   *stats.Int64Measure   `metric:"ioSize" unit:"bytes" description:"IO chunk size in bytes" extraviews:"sum" tags:"kind,operation"`
}

func (n *IOMetrics) tags(operation string) map[string]string {
	return map[string]string{"kind": "io", "operation": operation}
}

// Size records the size of some IO operation. Zero sizes are not recorded.
func (n *IOMetrics) Size(size int64, operation string) {
	if size == 0 {
		return
	}
	Int64(n.IOSize, size, n.tags(operation))
}

// Failed records a failure on some IO operation
func (n *IOMetrics) Failed(operation string) {
	Inc(n.Failures, n.tags(operation))
}

// IORecord records all metrics for an IO operation in one go.
//
// Example with deferred error capture:
//
//	func (i *Inode) ReadAt(p []byte, off int64) (n int, err error) {
//	  if i.t.MetricsEnabled() {
//	    defer func(start time.Time) {
//	      i.t.m.Content.IORecord(start, "read")(int64(n), err)
//	    }(time.Now())
//	  }
//	  ...
//	}
func (n *IOMetrics) IORecord(start time.Time, operation string) func(int64, error) {
	return func(size int64, err error) {
		Duration(start, time.Now(), n.Timing, n.tags(operation))
		Inc(n.Count, n.tags(operation))
		n.Size(size, operation)
		if err != nil {
			Inc(n.Failures, n.tags(operation))
		}
	}
}

// UsageMetrics is a common set of metrics reporting about usage
type UsageMetrics struct {
	Count    *stats.Int64Measure   `metric:"usageCount" description:"number of calls" tags:"kind,method"`
	Failures *stats.Int64Measure   `metric:"usageFailures" description:"number of failed calls" tags:"kind,method"`
	Timing   *stats.Float64Measure `metric:"timing" unit:"milliseconds" description:"duration of a call" tags:"kind,method"`
}

func (u *UsageMetrics) tags(method string) map[string]string {
	return map[string]string{"kind": "usage", "method": method}
}

// Inc records the usage of some method, without timings or failure reporting
func (u *UsageMetrics) Inc(method string) {
	Inc(u.Count, u.tags(method))
}

// UsedAll records usage of some instrumented entry point with failures, in one go.
//
// Example:
//
//	func (f *FileSys) Create(length int64, isDir bool) (sector uint32, err error) {
//	  if f.MetricsEnabled() {
//	    defer func(start time.Time) {
//	      f.m.Usage.UsedAll(start, "Create")(err)
//	    }(time.Now())
//	  }
//	  ...
//	}
func (u *UsageMetrics) UsedAll(start time.Time, method string) func(error) {
	return func(err error) {
		Since(start, u.Timing, u.tags(method))
		Inc(u.Count, u.tags(method))
		if err != nil {
			Inc(u.Failures, u.tags(method))
		}
	}
}

// Failed records a failure on some instrumented entry point
func (u *UsageMetrics) Failed(method string) {
	Inc(u.Failures, u.tags(method))
}
