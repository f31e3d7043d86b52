// Copyright © 2018 One Concern

package cmd

import (
	"io"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// putCmd copies a local file into the volume
var putCmd = &cobra.Command{
	Use:   "put <local file> [inode]",
	Short: "Write a local file into the volume",
	Long: `Writes the content of a local file into the volume. Use "-" to read from stdin.

Without an inode number, a new file is created and its inode number is printed.
With an inode number, the content is written into that file at --offset, growing it as needed.`,
	Example: `sectorfs put --device ./disk.img ./notes.txt
sectorfs put --device ./disk.img --offset 1024 ./patch.bin 3`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		var err error

		defer func(t0 time.Time) {
			cliUsage(t0, "put", err)
		}(time.Now())

		var content []byte
		if content, err = readLocal(cmd, args[0]); err != nil {
			wrapFatalln("read "+args[0], err)
			return
		}

		err = withVolume(func(v *volume) error {
			if len(args) == 1 {
				return putNew(v, content)
			}
			sector, e := parseSector(args[1])
			if e != nil {
				return e
			}
			return putAt(v, sector, content, sectorfsFlags.file.offset)
		})
		if err != nil {
			wrapFatalln("put", err)
			return
		}
	},
}

func readLocal(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return afero.ReadFile(appFs, path)
}

func putNew(v *volume, content []byte) error {
	sector, err := v.Create(0, false)
	if err != nil {
		return err
	}
	if err = putAt(v, sector, content, 0); err != nil {
		// do not leave a partial file behind
		return multierr.Append(err, v.Remove(sector))
	}
	logStdOut("%d\n", sector)
	return nil
}

func putAt(v *volume, sector uint32, content []byte, offset int64) (err error) {
	i, err := v.Open(sector)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, i.Close())
	}()
	_, err = i.WriteAt(content, offset)
	return err
}

func init() {
	addOffsetFlag(putCmd)
	rootCmd.AddCommand(putCmd)
}
