package shmstore

import (
	"fmt"
	"image"

	"github.com/gogpu/shmstore/pixel"
	"github.com/gogpu/shmstore/region"
)

// BackingStore holds the content of one toplevel window in a small pool of
// shared-memory buffers.
//
// Usage:
//
//	img, err := s.BeginPaint(dirty)
//	// draw into img within dirty
//	err = s.EndPaint()
//	err = s.Flush(window, dirty, image.Point{})
//
// BackingStore is not safe for concurrent use.
type BackingStore struct {
	display *Display
	window  Window
	opts    options

	// buffers is ordered newest first.
	buffers []*Buffer
	back    *Buffer
	front   *Buffer

	requested image.Point

	painting      bool
	pendingFlush  bool
	pendingRegion region.Region

	closed bool
}

// NewBackingStore creates an empty store for w. No memory is allocated
// until the first paint.
func NewBackingStore(d *Display, w Window, opts ...Option) *BackingStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &BackingStore{
		display: d,
		window:  w,
		opts:    o,
	}
	d.addStore(s)
	return s
}

// Window returns the window the store belongs to.
func (s *BackingStore) Window() Window { return s.window }

// Capacity returns the maximum number of buffers the store holds.
func (s *BackingStore) Capacity() int { return s.opts.capacity }

// MaxAge returns the age above which buffers are destroyed.
func (s *BackingStore) MaxAge() int { return s.opts.maxAge() }

// Resize records the new logical content size. Buffers are not touched
// until the next paint.
func (s *BackingStore) Resize(size image.Point) {
	s.requested = size
}

// RequestedSize returns the logical content size last passed to Resize,
// or the window size if Resize was never called.
func (s *BackingStore) RequestedSize() image.Point {
	if s.requested == (image.Point{}) {
		w, h := s.window.Size()
		return image.Pt(w, h)
	}
	return s.requested
}

// BeginPaint prepares the back buffer for drawing r, given in logical units
// relative to the content area, and returns the content image.
//
// It may block waiting for the compositor to release a buffer. For formats
// with alpha, the painted region of a reused buffer is cleared to
// transparent.
func (s *BackingStore) BeginPaint(r region.Region) (*pixel.Image, error) {
	if s.closed {
		return nil, ErrClosed
	}
	created, err := s.recreateBackBufferIfNeeded()
	if err != nil {
		return nil, err
	}
	s.painting = true

	m := s.margins()
	s.updateDirtyStates(r.Translated(m.Left, m.Top))

	content := s.ContentImage()
	if !created && content != nil && content.Format().HasAlpha() {
		dpr := content.DevicePixelRatio()
		for _, rc := range r.Rects() {
			content.Clear(region.ScaleRect(rc, dpr))
		}
	}
	return content, nil
}

// EndPaint finishes a paint. A flush requested while painting is
// performed now.
func (s *BackingStore) EndPaint() error {
	s.painting = false
	if !s.pendingFlush {
		return nil
	}
	r := s.pendingRegion
	return s.Flush(s.window, r, image.Point{})
}

// Painting reports whether a paint is in progress.
func (s *BackingStore) Painting() bool { return s.painting }

// Flush presents r, in logical content units, on target.
//
// Flushing the store's own window while painting is deferred to EndPaint.
// Flushing any other window copies that window's area of the back buffer
// into a one-shot buffer destroyed on release. offset is ignored; the child
// area comes from target.Position.
func (s *BackingStore) Flush(target Window, r region.Region, offset image.Point) error {
	if s.closed {
		return ErrClosed
	}
	if target != nil && target != s.window {
		return s.flushChild(target, r)
	}
	if s.painting {
		s.pendingRegion.Union(r)
		s.pendingFlush = true
		return nil
	}
	s.pendingFlush = false
	s.pendingRegion = region.Region{}

	if s.back == nil || !s.back.Usable() {
		return ErrNoBackBuffer
	}
	m := s.margins()
	damage := r.Translated(m.Left, m.Top)
	if deco := s.window.Decoration(); deco != nil && deco.IsDirty() {
		if s.back.busy {
			// The compositor still reads the back buffer: move to a free
			// buffer brought up to date from it before repainting the frame.
			if _, err := s.recreateBackBufferIfNeeded(); err != nil {
				return err
			}
		}
		damage.Union(s.updateDecorations())
	}

	s.front = s.back
	return s.commit(s.front, s.window.Surface(), damage)
}

// flushChild presents the part of the back buffer covered by a child
// window on the child's own surface.
func (s *BackingStore) flushChild(target Window, r region.Region) error {
	if s.back == nil || !s.back.Usable() {
		return ErrNoBackBuffer
	}
	w, h := target.Size()
	scale := s.back.scale
	src := s.back.img

	b := newBuffer(s.display, physicalSize(image.Pt(w, h), scale), src.Format(), scale)
	if !b.Usable() {
		return fmt.Errorf("shmstore: child window buffer: %w", b.err)
	}
	b.deleteOnRelease = true

	pos := target.Position()
	sr := region.ScaleRect(image.Rect(pos.X, pos.Y, pos.X+w, pos.Y+h), src.DevicePixelRatio())
	pixel.Draw(b.img, b.img.Bounds(), src, sr, pixel.OpSource)

	if err := s.commit(b, target.Surface(), r); err != nil {
		b.destroy()
		return err
	}
	return nil
}

func (s *BackingStore) commit(b *Buffer, surface SurfaceID, damage region.Region) error {
	b.busy = true
	if err := s.display.presenter.Commit(surface, b.id, damage); err != nil {
		b.busy = false
		return fmt.Errorf("shmstore: committing buffer %d: %w", b.id, err)
	}
	return nil
}

// ContentImage returns the back buffer area inside the decoration
// margins, or nil before the first paint or when the margins cover the
// whole buffer.
func (s *BackingStore) ContentImage() *pixel.Image {
	if s.back == nil {
		return nil
	}
	return s.back.ImageInsideMargins(s.margins())
}

// EntireImage returns the whole back buffer image including decorations,
// or nil before the first paint.
func (s *BackingStore) EntireImage() *pixel.Image {
	if s.back == nil {
		return nil
	}
	return s.back.Image()
}

// ToImage returns the content image for composition by another renderer.
func (s *BackingStore) ToImage() *pixel.Image {
	return s.ContentImage()
}

// BackBuffer returns the buffer targeted by painting.
func (s *BackingStore) BackBuffer() *Buffer { return s.back }

// FrontBuffer returns the buffer most recently committed.
func (s *BackingStore) FrontBuffer() *Buffer { return s.front }

// Buffers returns the buffers in the pool, newest first.
func (s *BackingStore) Buffers() []*Buffer {
	return append([]*Buffer(nil), s.buffers...)
}

// Reconnected drops every buffer after the compositor connection was
// re-established. The back buffer is recreated at once so the window can be
// flushed without repainting.
func (s *BackingStore) Reconnected() {
	if s.closed {
		return
	}
	old := s.buffers
	oldBack := s.back
	s.buffers = nil
	s.front = nil

	size := s.RequestedSize()
	if size.X > 0 && size.Y > 0 {
		if _, err := s.recreateBackBufferIfNeeded(); err != nil {
			Logger().Warn("shmstore: recreating back buffer after reconnect", "err", err)
		}
	}
	if s.back == oldBack {
		s.back = nil
	}
	for _, b := range old {
		b.destroy()
	}
}

// Close destroys all buffers and detaches the store from its display.
// Buffers still held by the compositor stop receiving release events.
func (s *BackingStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for _, b := range s.buffers {
		b.destroy()
	}
	s.buffers = nil
	s.back = nil
	s.front = nil
	s.display.removeStore(s)
	return nil
}

// margins returns the decoration margins, or zero without decoration.
func (s *BackingStore) margins() Margins {
	if deco := s.window.Decoration(); deco != nil {
		return deco.Margins()
	}
	return Margins{}
}

// updateDirtyStates marks r, in logical buffer units, stale in every buffer
// except the back buffer.
func (s *BackingStore) updateDirtyStates(r region.Region) {
	if r.IsEmpty() {
		return
	}
	for _, b := range s.buffers {
		if b != s.back {
			b.dirty.Union(r)
		}
	}
}
