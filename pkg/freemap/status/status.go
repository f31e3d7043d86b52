// Copyright © 2018 One Concern

// Package status declares error constants returned by the free-space map.
package status

import "github.com/oneconcern/sectorfs/pkg/errors"

var (
	// ErrNoSpace indicates that no run of free sectors is large enough
	ErrNoSpace = errors.New("no contiguous run of free sectors")

	// ErrPersist indicates that the bitmap could not be written to the device
	ErrPersist = errors.New("cannot persist free map")

	// ErrLoad indicates that the bitmap could not be read from the device
	ErrLoad = errors.New("cannot load free map")

	// ErrNotAllocated is raised when releasing sectors that are not all in use
	ErrNotAllocated = errors.New("releasing sectors that are not allocated")

	// ErrOutOfRange is raised for sectors past the end of the map
	ErrOutOfRange = errors.New("sectors out of the free map range")
)
