// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MemfdAllocator allocates shared memory with memfd_create(2).
//
// Each object is sealed against shrinking so the compositor can trust its
// size, and sealed against further seals. Kernels without memfd support
// fall back to Fallback.
type MemfdAllocator struct {
	Fallback FileAllocator
}

// NewAllocator returns the preferred Allocator for the platform.
func NewAllocator() Allocator {
	return MemfdAllocator{}
}

// Allocate implements Allocator.
func (a MemfdAllocator) Allocate(size int) (Handle, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	fd, err := unix.MemfdCreate("wayland-shm", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return a.Fallback.Allocate(size)
	}
	h, err := resize(fd, size)
	if err != nil {
		return nil, err
	}
	// An unsealed object is still usable.
	_, _ = unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK|unix.F_SEAL_SEAL)
	return h, nil
}

// Map implements Allocator.
func (a MemfdAllocator) Map(h Handle) ([]byte, error) {
	return mapFd(h)
}

// Unmap implements Allocator.
func (a MemfdAllocator) Unmap(b []byte) error {
	return unmap(b)
}
