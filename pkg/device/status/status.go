// Copyright © 2018 One Concern

// Package status declares error constants returned by block devices.
package status

import "github.com/oneconcern/sectorfs/pkg/errors"

var (
	// ErrOutOfRange indicates an access to a sector past the end of the device
	ErrOutOfRange = errors.New("sector out of range")

	// ErrBufferSize indicates a transfer buffer that is not exactly one sector long
	ErrBufferSize = errors.New("buffer is not one sector long")

	// ErrGeometry indicates a backing file whose size is not a whole number of sectors
	ErrGeometry = errors.New("device size is not a multiple of the sector size")

	// ErrEmptyDevice indicates a device with no sector
	ErrEmptyDevice = errors.New("device has no sector")

	// ErrIO indicates a failed transfer with the backing file
	ErrIO = errors.New("device i/o error")

	// ErrClosed indicates an operation on a closed device
	ErrClosed = errors.New("device is closed")
)
