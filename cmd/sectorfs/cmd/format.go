// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"math"
	"time"

	units "github.com/docker/go-units"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/oneconcern/sectorfs/pkg/device"
	"github.com/oneconcern/sectorfs/pkg/filesys"
)

// formatCmd creates a device image and formats a volume over it
var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Create and format a device image",
	Long: `Creates a device image of the requested size and formats a new volume over it.

The volume starts with an empty root directory.`,
	Example: `sectorfs format --device ./disk.img --size 8MiB`,
	Run: func(cmd *cobra.Command, args []string) {
		var err error

		defer func(t0 time.Time) {
			cliUsage(t0, "format", err)
		}(time.Now())

		if err = formatVolume(); err != nil {
			wrapFatalln("format", err)
			return
		}
	},
}

func formatVolume() (err error) {
	path := sectorfsFlags.root.device
	if path == "" {
		return errNoDevice
	}
	sectors, err := sectorsFor(sectorfsFlags.format.size)
	if err != nil {
		return err
	}
	exists, err := afero.Exists(appFs, path)
	if err != nil {
		return err
	}
	if exists && !sectorfsFlags.format.force {
		return fmt.Errorf("%s already exists: use --force to overwrite it", path)
	}

	l, err := cliLogger()
	if err != nil {
		return err
	}
	dev, err := device.Create(appFs, path, sectors)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dev.Close())
	}()

	fs, err := filesys.Format(dev, volumeOptions(l)...)
	if err != nil {
		return err
	}
	h := fs.Header()
	if err = fs.Shutdown(); err != nil {
		return err
	}
	logStdOut("formatted volume %s: %d sectors (%s), root inode %d\n",
		h.ID, h.Sectors, units.BytesSize(float64(h.Sectors)*device.SectorSize), h.Root)
	return nil
}

// sectorsFor converts a human readable size into a number of whole sectors
func sectorsFor(size string) (uint32, error) {
	n, err := units.RAMInBytes(size)
	if err != nil {
		return 0, err
	}
	sectors := n / device.SectorSize
	if sectors <= 0 || sectors > math.MaxUint32 {
		return 0, fmt.Errorf("invalid device size %q: must hold between 1 and %d sectors", size, uint32(math.MaxUint32))
	}
	return uint32(sectors), nil
}

func init() {
	addSizeFlag(formatCmd)
	addForceFlag(formatCmd)
	rootCmd.AddCommand(formatCmd)
}
