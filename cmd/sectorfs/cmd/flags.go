// Copyright © 2018 One Concern

package cmd

import (
	"github.com/spf13/cobra"
)

type flagsT struct {
	root struct {
		device     string
		logLevel   string
		cacheSlots int
		metrics    bool
	}
	format struct {
		size  string
		force bool
	}
	file struct {
		length  string
		isDir   bool
		offset  int64
		output  string
		asJSON  bool
		digest  int
		keyHex  string
	}
}

var sectorfsFlags = flagsT{}

func addDeviceFlag(cmd *cobra.Command) string {
	c := "device"
	cmd.PersistentFlags().StringVar(&sectorfsFlags.root.device, c, "", "Path to the device image holding the volume")
	return c
}

func addLogLevel(cmd *cobra.Command) string {
	c := "loglevel"
	cmd.PersistentFlags().StringVar(&sectorfsFlags.root.logLevel, c, "", "The logging level. Levels by increasing order of verbosity: none, error, warn, info, debug")
	return c
}

func addCacheSlotsFlag(cmd *cobra.Command) string {
	c := "cache-slots"
	cmd.PersistentFlags().IntVar(&sectorfsFlags.root.cacheSlots, c, 0, "Number of sector buffers in the cache (defaults to 64)")
	return c
}

func addMetricsFlag(cmd *cobra.Command) string {
	c := "metrics"
	cmd.PersistentFlags().BoolVar(&sectorfsFlags.root.metrics, c, false, "Toggle metrics collection, reported in the logs at debug level")
	return c
}

func addSizeFlag(cmd *cobra.Command) string {
	c := "size"
	cmd.Flags().StringVar(&sectorfsFlags.format.size, c, "4MiB", "Size of the device image (e.g. 512KiB, 8MiB). Rounded down to whole sectors")
	return c
}

func addForceFlag(cmd *cobra.Command) string {
	c := "force"
	cmd.Flags().BoolVar(&sectorfsFlags.format.force, c, false, "Overwrite an existing device image")
	return c
}

func addLengthFlag(cmd *cobra.Command) string {
	c := "length"
	cmd.Flags().StringVar(&sectorfsFlags.file.length, c, "0", "Initial length of the file, zero-filled (e.g. 0, 100KiB)")
	return c
}

func addDirFlag(cmd *cobra.Command) string {
	c := "dir"
	cmd.Flags().BoolVar(&sectorfsFlags.file.isDir, c, false, "Create a directory inode")
	return c
}

func addOffsetFlag(cmd *cobra.Command) string {
	c := "offset"
	cmd.Flags().Int64Var(&sectorfsFlags.file.offset, c, 0, "Offset in the file where to start")
	return c
}

func addOutputFlag(cmd *cobra.Command) string {
	c := "output"
	cmd.Flags().StringVar(&sectorfsFlags.file.output, c, "", "Write to this local file instead of stdout")
	return c
}

func addJSONFlag(cmd *cobra.Command) string {
	c := "json"
	cmd.Flags().BoolVar(&sectorfsFlags.file.asJSON, c, false, "Output as JSON")
	return c
}

func addDigestSizeFlag(cmd *cobra.Command) string {
	c := "digest-size"
	cmd.Flags().IntVar(&sectorfsFlags.file.digest, c, 64, "Digest size in bytes, between 1 and 64")
	return c
}

func addKeyFlag(cmd *cobra.Command) string {
	c := "key"
	cmd.Flags().StringVar(&sectorfsFlags.file.keyHex, c, "", "Hex-encoded key for a keyed blake2b digest")
	return c
}

type benchFlags struct {
	files    int
	fileSize string
	parallel int
	keep     bool
}

var bench benchFlags

func addBenchFilesFlag(cmd *cobra.Command) string {
	c := "files"
	cmd.Flags().IntVar(&bench.files, c, 16, "Number of files to write")
	return c
}

func addBenchFileSizeFlag(cmd *cobra.Command) string {
	c := "file-size"
	cmd.Flags().StringVar(&bench.fileSize, c, "64KiB", "Size of each file")
	return c
}

func addBenchParallelFlag(cmd *cobra.Command) string {
	c := "parallel"
	cmd.Flags().IntVar(&bench.parallel, c, 4, "Number of files written and read concurrently")
	return c
}

func addBenchKeepFlag(cmd *cobra.Command) string {
	c := "keep"
	cmd.Flags().BoolVar(&bench.keep, c, false, "Keep the files written by the benchmark")
	return c
}
