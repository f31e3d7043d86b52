// Copyright © 2018 One Concern

// Package status declares error constants returned by the inode layer.
package status

import "github.com/oneconcern/sectorfs/pkg/errors"

var (
	// ErrNoSpace indicates that the device has not enough free sectors to hold the file
	ErrNoSpace = errors.New("no space left on device")

	// ErrTooLarge indicates a file length beyond what an inode can address
	ErrTooLarge = errors.New("file too large")

	// ErrWriteDenied indicates a write to an inode while writes are denied
	ErrWriteDenied = errors.New("writes denied on inode")

	// ErrNotInode indicates a sector that does not hold an inode
	ErrNotInode = errors.New("sector does not hold an inode")

	// ErrInvalidOffset indicates a negative offset or length
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrNotOpen is raised when closing an inode more times than it was opened
	ErrNotOpen = errors.New("inode is not open")

	// ErrDenyWrite is raised when deny and allow write calls are not balanced
	ErrDenyWrite = errors.New("unbalanced deny write")

	// ErrCorrupt is raised when the index tree of an inode is inconsistent
	ErrCorrupt = errors.New("corrupt inode")
)
