// Copyright © 2018 One Concern

package cmd

import (
	"time"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"
)

// createCmd creates an empty inode
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a file",
	Long: `Creates a file of the given length, filled with zeroes, and prints its inode number.

Use --dir to create a directory inode instead.`,
	Example: `sectorfs create --device ./disk.img --length 100KiB`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var err error

		defer func(t0 time.Time) {
			cliUsage(t0, "create", err)
		}(time.Now())

		var length int64
		if length, err = units.RAMInBytes(sectorfsFlags.file.length); err != nil {
			wrapFatalln("invalid length", err)
			return
		}
		err = withVolume(func(v *volume) error {
			sector, e := v.Create(length, sectorfsFlags.file.isDir)
			if e != nil {
				return e
			}
			logStdOut("%d\n", sector)
			return nil
		})
		if err != nil {
			wrapFatalln("create", err)
			return
		}
	},
}

func init() {
	addLengthFlag(createCmd)
	addDirFlag(createCmd)
	rootCmd.AddCommand(createCmd)
}
