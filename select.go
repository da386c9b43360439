package shmstore

import (
	"fmt"
	"image"
	"slices"

	"github.com/gogpu/shmstore/pixel"
	"github.com/gogpu/shmstore/region"
)

// recreateBackBufferIfNeeded selects the back buffer for the next paint,
// blocking until one is free. It reports whether the selected buffer was
// newly created.
func (s *BackingStore) recreateBackBufferIfNeeded() (bool, error) {
	size := s.RequestedSize()
	if size.X <= 0 || size.Y <= 0 {
		return false, fmt.Errorf("%w: %v", ErrInvalidSize, size)
	}
	scale := windowScale(s.window)
	m := s.margins()
	bufSize := physicalSize(size.Add(m.Size()), scale)

	buf, created, err := s.getBuffer(bufSize, scale)
	for buf == nil {
		if err != nil {
			return false, err
		}
		Logger().Debug("shmstore: stalling, all buffers busy", "buffers", len(s.buffers))
		if err := s.display.waitForEvents(); err != nil {
			return false, err
		}
		buf, created, err = s.getBuffer(bufSize, scale)
	}

	var oldBytes int
	if s.back != nil && s.back.Usable() {
		oldBytes = s.back.img.ByteSize()
	}
	newBytes := buf.img.ByteSize()

	// Bring stale areas of the new back buffer up to date from the old one.
	if s.back != buf && oldBytes == newBytes {
		copyDirty(buf, s.back)
	}
	s.back = buf

	for _, b := range s.buffers {
		if b != buf {
			b.age++
		}
	}
	buf.age = 0

	if deco := s.window.Decoration(); deco != nil && s.window.Visible() && oldBytes != newBytes {
		deco.Update()
		s.window.RequestRedraw()
	}

	buf.dirty.Clear()
	return created, nil
}

// copyDirty copies the dirty region of dst from src. Regions are in
// logical units and scaled with each image's own pixel ratio.
func copyDirty(dst, src *Buffer) {
	di, si := dst.img, src.img
	ddpr, sdpr := di.DevicePixelRatio(), si.DevicePixelRatio()
	for _, rc := range dst.dirty.Rects() {
		pixel.Draw(di, region.ScaleRect(rc, ddpr), si, region.ScaleRect(rc, sdpr), pixel.OpSource)
	}
}

// getBuffer prunes stale buffers and returns the free buffer with the
// lowest age, creating one if the pool has room. It returns nil without
// error when the caller must wait for a release.
func (s *BackingStore) getBuffer(size image.Point, scale float64) (*Buffer, bool, error) {
	maxAge := s.opts.maxAge()
	s.buffers = slices.DeleteFunc(s.buffers, func(b *Buffer) bool {
		if b.age <= maxAge && b.size == size {
			return false
		}
		s.dropBuffer(b)
		return true
	})

	var best *Buffer
	for _, b := range s.buffers {
		if b.busy || !b.Usable() {
			continue
		}
		if best == nil || b.age < best.age {
			best = b
		}
	}
	if best != nil {
		return best, false, nil
	}

	var lastErr error
	for len(s.buffers) < s.opts.capacity {
		b := newBuffer(s.display, size, s.opts.format, scale)
		s.buffers = slices.Insert(s.buffers, 0, b)
		if b.Usable() {
			return b, true, nil
		}
		lastErr = b.err
	}

	for _, b := range s.buffers {
		if b.busy {
			return nil, false, nil
		}
	}

	// Nothing will ever be released: free the slots taken by unusable
	// buffers so the next paint can retry.
	s.buffers = slices.DeleteFunc(s.buffers, func(b *Buffer) bool {
		if b.Usable() {
			return false
		}
		s.dropBuffer(b)
		return true
	})
	if lastErr != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrCapacityExhausted, lastErr)
	}
	return nil, false, ErrCapacityExhausted
}

// dropBuffer destroys b and clears references to it.
func (s *BackingStore) dropBuffer(b *Buffer) {
	if s.back == b {
		s.back = nil
	}
	if s.front == b {
		s.front = nil
	}
	b.destroy()
}
