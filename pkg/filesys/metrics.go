// Copyright © 2018 One Concern

package filesys

import "github.com/oneconcern/sectorfs/pkg/metrics"

// M describes metrics for the filesys package
type M struct {
	Volume struct {
		Sectors metrics.SectorMetrics `group:"sectors" description:"metrics about the sectors of a volume"`
	} `group:"volumetry" description:""`
	Usage metrics.UsageMetrics `group:"telemetry" description:"usage stats for the filesys package"`
}
