// Copyright © 2018 One Concern

// Package status declares error constants returned by volume operations.
package status

import "github.com/oneconcern/sectorfs/pkg/errors"

var (
	// ErrNotFormatted indicates a device without a volume header
	ErrNotFormatted = errors.New("device is not formatted")

	// ErrVersion indicates a volume header with an unsupported version
	ErrVersion = errors.New("unsupported volume version")

	// ErrGeometry indicates a volume header that does not match its device
	ErrGeometry = errors.New("volume does not match device geometry")

	// ErrTooSmall indicates a device too small to hold a volume
	ErrTooSmall = errors.New("device too small for a volume")

	// ErrRootRemoval is returned when removing the root directory
	ErrRootRemoval = errors.New("cannot remove the root directory")

	// ErrNotInode indicates a sector that is not allocated to an inode
	ErrNotInode = errors.New("sector is not an inode")

	// ErrShutdown indicates an operation on a volume that was shut down
	ErrShutdown = errors.New("volume is shut down")

	// ErrIO indicates a failed transfer of volume metadata
	ErrIO = errors.New("volume i/o error")
)
