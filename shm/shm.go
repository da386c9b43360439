// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shm allocates and maps shared memory for pixel buffers.
//
// An Allocator creates zero-filled memory objects (Handles) that can be
// handed to another process by file descriptor, and maps them into the
// current address space. Mapping and unmapping are separate from handle
// lifetime: a mapping stays valid after its Handle is closed.
//
// Allocators are safe for concurrent use. Handles are not.
package shm

import (
	"errors"
)

// Common errors for shared-memory operations.
var (
	// ErrInvalidSize is returned when a non-positive size is requested.
	ErrInvalidSize = errors.New("shm: invalid size")

	// ErrClosed is returned when a closed Handle is used.
	ErrClosed = errors.New("shm: handle is closed")

	// ErrForeignHandle is returned when a Handle is passed to an Allocator
	// that did not create it.
	ErrForeignHandle = errors.New("shm: handle from another allocator")
)

// Handle is an allocated shared-memory object.
type Handle interface {
	// Fd returns the file descriptor backing the memory, or -1 when the
	// memory is local to this process.
	Fd() int

	// Size returns the size of the memory object in bytes.
	Size() int

	// Close releases the handle. Existing mappings stay valid.
	// Close is idempotent.
	Close() error
}

// Allocator creates and maps shared memory.
type Allocator interface {
	// Allocate creates a zero-filled memory object of size bytes.
	Allocate(size int) (Handle, error)

	// Map maps the whole of h read-write and shared.
	Map(h Handle) ([]byte, error)

	// Unmap releases a mapping returned by Map.
	Unmap(b []byte) error
}
