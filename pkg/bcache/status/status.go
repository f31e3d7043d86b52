// Copyright © 2018 One Concern

// Package status declares error constants raised by the buffer cache.
package status

import "github.com/oneconcern/sectorfs/pkg/errors"

var (
	// ErrDeviceIO indicates that the underlying device failed to transfer a sector
	ErrDeviceIO = errors.New("buffer cache device i/o")

	// ErrNoDevice indicates a request without a device
	ErrNoDevice = errors.New("buffer cache request without a device")

	// ErrOutOfRange indicates a partial transfer past the end of a sector
	ErrOutOfRange = errors.New("transfer out of sector bounds")
)
