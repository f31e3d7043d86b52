// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/oneconcern/sectorfs/pkg/fingerprint"
)

// checksumCmd represents the checksum command
var checksumCmd = &cobra.Command{
	Use:   "checksum <inode>",
	Short: "Create a blake2b checksum for a file of the volume",
	Long: `Computes a blake2b tree digest of the content of a file, hashing leaves of 64 sectors concurrently.

With --key, the digest is a keyed MAC.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error

		defer func(t0 time.Time) {
			cliUsage(t0, "checksum", err)
		}(time.Now())

		var sector uint32
		if sector, err = parseSector(args[0]); err != nil {
			wrapFatalln("checksum", err)
			return
		}
		var digest []byte
		err = withVolume(func(v *volume) error {
			var e error
			digest, e = checksum(v, sector)
			return e
		})
		if err != nil {
			wrapFatalln("checksum", err)
			return
		}
		logStdOut("%x\n", digest)
	},
}

func checksum(v *volume, sector uint32) (digest []byte, err error) {
	size := sectorfsFlags.file.digest
	if size < 1 || size > 64 {
		return nil, fmt.Errorf("invalid digest size %d", size)
	}
	opts := []fingerprint.Option{fingerprint.Size(uint8(size))}
	if sectorfsFlags.file.keyHex != "" {
		key, e := hex.DecodeString(sectorfsFlags.file.keyHex)
		if e != nil {
			return nil, fmt.Errorf("invalid key: %w", e)
		}
		opts = append(opts, fingerprint.Key(key))
	}

	i, err := v.Open(sector)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, i.Close())
	}()
	return fingerprint.New(opts...).Sum(context.Background(), i, i.Length())
}

func init() {
	addDigestSizeFlag(checksumCmd)
	addKeyFlag(checksumCmd)
	rootCmd.AddCommand(checksumCmd)
}
