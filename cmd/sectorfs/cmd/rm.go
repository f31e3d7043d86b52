// Copyright © 2018 One Concern

package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

// rmCmd removes files from the volume
var rmCmd = &cobra.Command{
	Use:     "rm <inode>...",
	Short:   "Remove files from the volume",
	Long:    `Removes files and reclaims all their sectors. The root directory cannot be removed.`,
	Example: `sectorfs rm --device ./disk.img 3 7`,
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error

		defer func(t0 time.Time) {
			cliUsage(t0, "rm", err)
		}(time.Now())

		sectors := make([]uint32, 0, len(args))
		for _, arg := range args {
			sector, e := parseSector(arg)
			if e != nil {
				err = e
				wrapFatalln("rm", err)
				return
			}
			sectors = append(sectors, sector)
		}
		err = withVolume(func(v *volume) error {
			for _, sector := range sectors {
				if e := v.Remove(sector); e != nil {
					return e
				}
				infoLogger.Printf("removed inode %d", sector)
			}
			return nil
		})
		if err != nil {
			wrapFatalln("rm", err)
			return
		}
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
