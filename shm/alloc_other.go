// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !unix

package shm

// NewAllocator returns the preferred Allocator for the platform.
// Without mmap, memory stays local to the process.
func NewAllocator() Allocator {
	return HeapAllocator{}
}
