// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oneconcern/sectorfs/pkg/device"
	"github.com/oneconcern/sectorfs/pkg/dlogger"
	"github.com/oneconcern/sectorfs/pkg/errors"
	"github.com/oneconcern/sectorfs/pkg/filesys"
)

var errNoDevice = errors.New("no device: set --device, a config or SECTORFS_DEVICE")

func cliLogger() (*zap.Logger, error) {
	l, err := dlogger.GetLogger(sectorfsFlags.root.logLevel)
	if err != nil {
		return nil, err
	}
	initMetrics(l)
	return l, nil
}

func volumeOptions(l *zap.Logger) []filesys.Option {
	return []filesys.Option{
		filesys.Logger(l),
		filesys.CacheSlots(sectorfsFlags.root.cacheSlots),
		filesys.WithMetrics(sectorfsFlags.root.metrics),
	}
}

// volume is a mounted volume with its device
type volume struct {
	*filesys.FileSystem
	dev *device.File
}

// mountVolume mounts the volume held by the configured device
func mountVolume() (*volume, error) {
	if sectorfsFlags.root.device == "" {
		return nil, errNoDevice
	}
	l, err := cliLogger()
	if err != nil {
		return nil, err
	}
	dev, err := device.Open(appFs, sectorfsFlags.root.device)
	if err != nil {
		return nil, err
	}
	fs, err := filesys.Mount(dev, volumeOptions(l)...)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return &volume{FileSystem: fs, dev: dev}, nil
}

// unmount shuts the volume down and closes its device
func (v *volume) unmount() error {
	return multierr.Append(v.Shutdown(), v.dev.Close())
}

// withVolume runs fn against the mounted volume, then shuts it down
func withVolume(fn func(*volume) error) (err error) {
	v, err := mountVolume()
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, v.unmount())
	}()
	return fn(v)
}

func parseSector(arg string) (uint32, error) {
	s, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid inode number %q: %w", arg, err)
	}
	return uint32(s), nil
}
