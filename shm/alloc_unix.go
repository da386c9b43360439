// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build unix && !linux

package shm

// NewAllocator returns the preferred Allocator for the platform.
func NewAllocator() Allocator {
	return FileAllocator{}
}
