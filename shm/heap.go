// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shm

import "fmt"

// HeapAllocator allocates process-local memory.
//
// It satisfies the Allocator contract (zero-filled memory, Map returning the
// same bytes to every caller) without any kernel object, which makes it the
// allocator of choice for tests and for platforms without mmap.
type HeapAllocator struct{}

// heapHandle is a Handle backed by a Go slice.
type heapHandle struct {
	data   []byte
	closed bool
}

func (h *heapHandle) Fd() int   { return -1 }
func (h *heapHandle) Size() int { return len(h.data) }

func (h *heapHandle) Close() error {
	h.closed = true
	return nil
}

// Allocate implements Allocator.
func (HeapAllocator) Allocate(size int) (Handle, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &heapHandle{data: make([]byte, size)}, nil
}

// Map implements Allocator. Every mapping of a handle aliases the same
// memory, like MAP_SHARED mappings of one file.
func (HeapAllocator) Map(h Handle) ([]byte, error) {
	hh, ok := h.(*heapHandle)
	if !ok {
		return nil, ErrForeignHandle
	}
	if hh.closed {
		return nil, ErrClosed
	}
	return hh.data, nil
}

// Unmap implements Allocator. Heap memory is reclaimed by the garbage
// collector once unreferenced.
func (HeapAllocator) Unmap([]byte) error {
	return nil
}
