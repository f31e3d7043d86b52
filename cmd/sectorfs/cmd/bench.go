// Copyright © 2018 One Concern

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"time"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oneconcern/sectorfs/internal/rand"
)

type benchReport struct {
	Files   int           `json:"files"`
	Bytes   int64         `json:"bytes"`
	Write   time.Duration `json:"write"`
	Read    time.Duration `json:"read"`
	Remove  time.Duration `json:"remove"`
	Sectors []uint32      `json:"sectors,omitempty"`
}

// benchCmd writes, reads back and removes files concurrently
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Exercise the volume with concurrent writers and readers",
	Long: `Writes files of random content to the volume, with several writers at a time,
reads them back and verifies their content, then removes them.

Use --metrics and --loglevel debug to get the detailed metrics of the cache, free map and inodes.`,
	Example: `sectorfs bench --device ./disk.img --files 64 --file-size 100KiB --parallel 8`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var err error

		defer func(t0 time.Time) {
			cliUsage(t0, "bench", err)
		}(time.Now())

		var size int64
		if size, err = units.RAMInBytes(bench.fileSize); err != nil {
			wrapFatalln("invalid file size", err)
			return
		}
		var report benchReport
		err = withVolume(func(v *volume) error {
			var e error
			report, e = runBench(v, bench.files, int(size), bench.parallel)
			return e
		})
		if err != nil {
			wrapFatalln("bench", err)
			return
		}
		if sectorfsFlags.file.asJSON {
			err = printJSON(report)
			return
		}
		printBench(report)
	},
}

func runBench(v *volume, files, size, parallel int) (report benchReport, err error) {
	if files <= 0 || size < 0 {
		return report, fmt.Errorf("invalid benchmark: %d files of %d bytes", files, size)
	}
	if parallel <= 0 {
		parallel = 1
	}
	l, err := cliLogger()
	if err != nil {
		return report, err
	}

	payloads := make([][]byte, files)
	for i := range payloads {
		payloads[i] = rand.Bytes(size)
	}
	report.Files = files
	report.Bytes = int64(files) * int64(size)
	sectors := make([]uint32, files)

	// remove whatever was written, unless kept
	written := 0
	defer func() {
		if bench.keep && err == nil {
			report.Sectors = sectors
			return
		}
		t0 := time.Now()
		for _, sector := range sectors[:written] {
			if sector != 0 {
				err = multierr.Append(err, v.Remove(sector))
			}
		}
		report.Remove = time.Since(t0)
	}()

	t0 := time.Now()
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(parallel)
	for i := range payloads {
		i := i
		g.Go(func() error {
			sector, e := v.Create(0, false)
			if e != nil {
				return e
			}
			sectors[i] = sector
			l.Debug("bench write", zap.Uint32("inode", sector), zap.Int("size", size))
			return putAt(v, sector, payloads[i], 0)
		})
	}
	err = g.Wait()
	written = files
	report.Write = time.Since(t0)
	if err != nil {
		return report, err
	}

	t0 = time.Now()
	g, _ = errgroup.WithContext(context.Background())
	g.SetLimit(parallel)
	for i := range payloads {
		i := i
		g.Go(func() error {
			return verify(v, sectors[i], payloads[i])
		})
	}
	err = g.Wait()
	report.Read = time.Since(t0)
	return report, err
}

func verify(v *volume, sector uint32, expected []byte) (err error) {
	i, err := v.Open(sector)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, i.Close())
	}()
	got := make([]byte, i.Length())
	if _, err = i.ReadAt(got, 0); err != nil {
		return err
	}
	if !bytes.Equal(expected, got) {
		return fmt.Errorf("inode %d: content differs from what was written", sector)
	}
	return nil
}

func throughput(n int64, d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return units.BytesSize(float64(n)/d.Seconds()) + "/s"
}

func printBench(r benchReport) {
	logStdOut("Files:   %d (%s)\n", r.Files, units.BytesSize(float64(r.Bytes)))
	logStdOut("Write:   %v (%s)\n", r.Write, throughput(r.Bytes, r.Write))
	logStdOut("Read:    %v (%s)\n", r.Read, throughput(r.Bytes, r.Read))
	if len(r.Sectors) > 0 {
		logStdOut("Kept:    %v\n", r.Sectors)
	} else {
		logStdOut("Remove:  %v\n", r.Remove)
	}
}

func init() {
	addBenchFilesFlag(benchCmd)
	addBenchFileSizeFlag(benchCmd)
	addBenchParallelFlag(benchCmd)
	addBenchKeepFlag(benchCmd)
	addJSONFlag(benchCmd)
	rootCmd.AddCommand(benchCmd)
}
