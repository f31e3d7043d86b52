// Copyright © 2018 One Concern

package cmd

import (
	"time"

	units "github.com/docker/go-units"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/oneconcern/sectorfs/pkg/device"
	"github.com/oneconcern/sectorfs/pkg/filesys"
)

type volumeStat struct {
	Header filesys.Header `json:"header"`
	Stats  filesys.Stats  `json:"stats"`
}

type inodeStat struct {
	Inode   uint32 `json:"inode"`
	Length  int64  `json:"length"`
	Sectors uint32 `json:"sectors"`
	Dir     bool   `json:"dir"`
}

// statCmd reports about the volume or one of its files
var statCmd = &cobra.Command{
	Use:   "stat [inode]",
	Short: "Show volume or file information",
	Long: `Without argument, shows the volume header, its space usage and cache activity.
With an inode number, shows the length of that file and the sectors it uses, index sectors included.`,
	Example: `sectorfs stat --device ./disk.img --json
sectorfs stat --device ./disk.img 3`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error

		defer func(t0 time.Time) {
			cliUsage(t0, "stat", err)
		}(time.Now())

		err = withVolume(func(v *volume) error {
			if len(args) == 0 {
				return printVolume(volumeStat{Header: v.Header(), Stats: v.Stats()})
			}
			sector, e := parseSector(args[0])
			if e != nil {
				return e
			}
			return statInode(v, sector)
		})
		if err != nil {
			wrapFatalln("stat", err)
			return
		}
	},
}

func statInode(v *volume, sector uint32) (err error) {
	i, err := v.Open(sector)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, i.Close())
	}()
	return printInode(inodeStat{
		Inode:   sector,
		Length:  i.Length(),
		Sectors: i.Sectors(),
		Dir:     i.IsDir(),
	})
}

func printJSON(v interface{}) error {
	o, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	logStdOut("%s\n", o)
	return nil
}

func humanSectors(n uint32) string {
	return units.BytesSize(float64(n) * device.SectorSize)
}

func printVolume(s volumeStat) error {
	if sectorfsFlags.file.asJSON {
		return printJSON(s)
	}
	logStdOut("Volume:      %s\n", s.Header.ID)
	logStdOut("Created:     %s\n", s.Header.Created.Format(time.RFC3339))
	logStdOut("Device:      %s\n", s.Stats.Device)
	logStdOut("Sectors:     %d (%s)\n", s.Stats.Sectors, humanSectors(s.Stats.Sectors))
	logStdOut("Free:        %d (%s)\n", s.Stats.Free, humanSectors(s.Stats.Free))
	logStdOut("Used:        %d (%s), %d reserved\n", s.Stats.Used, humanSectors(s.Stats.Used), s.Stats.Reserved)
	logStdOut("Root inode:  %d\n", s.Header.Root)
	logStdOut("Cache:       %d slots, %d hits, %d misses, %d evictions, %d write-backs\n",
		s.Stats.Cache.Slots, s.Stats.Cache.Hits, s.Stats.Cache.Misses, s.Stats.Cache.Evictions, s.Stats.Cache.WriteBacks)
	if s.Stats.IO != nil {
		logStdOut("Device I/O:  %d reads, %d writes\n", s.Stats.IO.Reads, s.Stats.IO.Writes)
	}
	return nil
}

func printInode(s inodeStat) error {
	if sectorfsFlags.file.asJSON {
		return printJSON(s)
	}
	kind := "file"
	if s.Dir {
		kind = "directory"
	}
	logStdOut("Inode:       %d (%s)\n", s.Inode, kind)
	logStdOut("Length:      %d (%s)\n", s.Length, units.BytesSize(float64(s.Length)))
	logStdOut("Sectors:     %d (%s)\n", s.Sectors, humanSectors(s.Sectors))
	return nil
}

func init() {
	addJSONFlag(statCmd)
	rootCmd.AddCommand(statCmd)
}
