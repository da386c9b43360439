// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build unix

package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileAllocator allocates shared memory as unlinked temporary files.
//
// Files are created in Dir, or in $XDG_RUNTIME_DIR when Dir is empty, or in
// the system temporary directory when neither is set. The file is removed
// from the directory right after creation, so only the descriptor keeps it
// alive.
type FileAllocator struct {
	Dir string
}

// fdHandle is a Handle backed by a file descriptor.
type fdHandle struct {
	fd   int
	size int
}

func (h *fdHandle) Fd() int   { return h.fd }
func (h *fdHandle) Size() int { return h.size }

func (h *fdHandle) Close() error {
	if h.fd < 0 {
		return nil
	}
	err := unix.Close(h.fd)
	h.fd = -1
	return err
}

func (a FileAllocator) dir() string {
	if a.Dir != "" {
		return a.Dir
	}
	if d := os.Getenv("XDG_RUNTIME_DIR"); d != "" {
		return d
	}
	return os.TempDir()
}

// Allocate implements Allocator.
func (a FileAllocator) Allocate(size int) (Handle, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	f, err := os.CreateTemp(a.dir(), "wayland-shm-*")
	if err != nil {
		return nil, fmt.Errorf("shm: create temp file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	_ = os.Remove(f.Name())

	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("shm: dup: %w", err)
	}
	unix.CloseOnExec(fd)
	return resize(fd, size)
}

// Map implements Allocator.
func (a FileAllocator) Map(h Handle) ([]byte, error) {
	return mapFd(h)
}

// Unmap implements Allocator.
func (a FileAllocator) Unmap(b []byte) error {
	return unmap(b)
}

// resize grows a fresh descriptor to size bytes. Growing a file with
// ftruncate yields zero-filled pages, which buffers rely on.
func resize(fd, size int) (Handle, error) {
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("shm: resize to %d bytes: %w", size, err)
	}
	return &fdHandle{fd: fd, size: size}, nil
}

func mapFd(h Handle) ([]byte, error) {
	if _, ok := h.(*fdHandle); !ok {
		return nil, ErrForeignHandle
	}
	if h.Fd() < 0 {
		return nil, ErrClosed
	}
	b, err := unix.Mmap(h.Fd(), 0, h.Size(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %d bytes: %w", h.Size(), err)
	}
	return b, nil
}

func unmap(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("shm: munmap: %w", err)
	}
	return nil
}
