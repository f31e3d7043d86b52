// Copyright © 2018 One Concern

package cmd

import (
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// getCmd copies a file out of the volume
var getCmd = &cobra.Command{
	Use:   "get <inode>",
	Short: "Read a file from the volume",
	Long: `Reads the content of a file, from --offset to its end, and writes it to stdout
or to the local file given by --output.`,
	Example: `sectorfs get --device ./disk.img --output ./notes.txt 3`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error

		defer func(t0 time.Time) {
			cliUsage(t0, "get", err)
		}(time.Now())

		var sector uint32
		if sector, err = parseSector(args[0]); err != nil {
			wrapFatalln("get", err)
			return
		}
		err = withVolume(func(v *volume) error {
			return getTo(cmd, v, sector)
		})
		if err != nil {
			wrapFatalln("get", err)
			return
		}
	},
}

func getTo(cmd *cobra.Command, v *volume, sector uint32) (err error) {
	i, err := v.Open(sector)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, i.Close())
	}()

	offset := sectorfsFlags.file.offset
	if offset < 0 || offset > i.Length() {
		offset = i.Length()
	}
	src := io.NewSectionReader(i, offset, i.Length()-offset)

	var dst io.Writer = cmd.OutOrStdout()
	if target := sectorfsFlags.file.output; target != "" {
		f, e := appFs.Create(target)
		if e != nil {
			return e
		}
		defer func() {
			err = multierr.Append(err, f.Close())
		}()
		dst = f
	}
	_, err = io.Copy(dst, src)
	return err
}

func init() {
	addOffsetFlag(getCmd)
	addOutputFlag(getCmd)
	rootCmd.AddCommand(getCmd)
}
