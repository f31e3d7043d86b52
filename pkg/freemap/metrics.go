// Copyright © 2018 One Concern

package freemap

import (
	"github.com/oneconcern/sectorfs/pkg/metrics"
)

// M describes metrics for the freemap package
type M struct {
	Volume struct {
		Sectors metrics.SectorMetrics `group:"sectors" description:"metrics about allocated and released sectors"`
	} `group:"volumetry" description:""`
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for the freemap package"`
}
