// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package compositor implements an in-process compositor for shmstore.
//
// It registers shared-memory buffers by mapping them through the same
// allocator the client uses, copies committed content into a per-surface
// framebuffer, and returns buffers to the client through queued release
// events. It stands in for a display server in tests, headless rendering,
// and the shmdemo command.
//
// Release events may be queued from any goroutine with Release and
// ReleaseAll. They are delivered to the release handler only by Dispatch
// and BlockUntilAnyEvent, on the calling goroutine.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/eapache/queue"

	"github.com/gogpu/shmstore"
	"github.com/gogpu/shmstore/pixel"
	"github.com/gogpu/shmstore/region"
	"github.com/gogpu/shmstore/shm"
)

var (
	// ErrClosed is returned by a closed compositor.
	ErrClosed = errors.New("compositor: closed")

	// ErrUnknownBuffer is returned when committing a buffer that was never
	// created or has been destroyed.
	ErrUnknownBuffer = errors.New("compositor: unknown buffer")
)

// ReleasePolicy decides when committed buffers are released.
type ReleasePolicy int

const (
	// ReleaseOnReplace releases a surface's buffer when another buffer
	// is committed on it. Clients need at least two buffers.
	ReleaseOnReplace ReleasePolicy = iota

	// ReleaseImmediately releases a buffer as soon as it is committed,
	// letting clients run single-buffered.
	ReleaseImmediately

	// ReleaseManually never releases on its own; callers use Release and
	// ReleaseAll.
	ReleaseManually
)

// String returns the policy name.
func (p ReleasePolicy) String() string {
	switch p {
	case ReleaseOnReplace:
		return "OnReplace"
	case ReleaseImmediately:
		return "Immediately"
	case ReleaseManually:
		return "Manually"
	default:
		return fmt.Sprintf("ReleasePolicy(%d)", int(p))
	}
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithReleasePolicy sets the release policy. The default is
// ReleaseOnReplace.
func WithReleasePolicy(p ReleasePolicy) Option {
	return func(c *Compositor) {
		c.policy = p
	}
}

type buffer struct {
	mem  []byte
	img  *pixel.Image
	held bool
}

type surface struct {
	attached shmstore.BufferID
	commits  int
	damage   region.Region
	content  *image.RGBA
}

// Compositor is an in-process shmstore.Presenter and shmstore.EventPump.
type Compositor struct {
	alloc  shm.Allocator
	policy ReleasePolicy

	mu        sync.Mutex
	cond      *sync.Cond
	next      shmstore.BufferID
	buffers   map[shmstore.BufferID]*buffer
	surfaces  map[shmstore.SurfaceID]*surface
	events    *queue.Queue
	onRelease func(shmstore.BufferID)
	closed    bool
}

var (
	_ shmstore.Presenter = (*Compositor)(nil)
	_ shmstore.EventPump = (*Compositor)(nil)
)

// New creates a compositor that maps client buffers with alloc.
func New(alloc shm.Allocator, opts ...Option) *Compositor {
	c := &Compositor{
		alloc:    alloc,
		buffers:  make(map[shmstore.BufferID]*buffer),
		surfaces: make(map[shmstore.SurfaceID]*surface),
		events:   queue.New(),
	}
	c.cond = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the release policy.
func (c *Compositor) Policy() ReleasePolicy { return c.policy }

// CreateBuffer maps the memory behind h and registers it as a buffer.
func (c *Compositor) CreateBuffer(h shm.Handle, width, height, stride int, format pixel.Format) (shmstore.BufferID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	if !format.IsValid() {
		return 0, fmt.Errorf("compositor: %w: %v", pixel.ErrInvalidFormat, format)
	}

	mem, err := c.alloc.Map(h)
	if err != nil {
		return 0, fmt.Errorf("compositor: mapping pool: %w", err)
	}
	img, err := pixel.FromRaw(mem, width, height, format, stride)
	if err != nil {
		_ = c.alloc.Unmap(mem)
		return 0, fmt.Errorf("compositor: invalid buffer layout: %w", err)
	}

	c.next++
	c.buffers[c.next] = &buffer{mem: mem, img: img}
	return c.next, nil
}

// Commit attaches id to the surface and copies its content into the
// surface framebuffer.
func (c *Compositor) Commit(sid shmstore.SurfaceID, id shmstore.BufferID, damage region.Region) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	b, ok := c.buffers[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBuffer, id)
	}

	s := c.surfaces[sid]
	if s == nil {
		s = &surface{}
		c.surfaces[sid] = s
	}
	prev := s.attached
	s.attached = id
	s.commits++
	s.damage.Union(damage)
	s.content = upload(s.content, b.img)
	b.held = true

	switch c.policy {
	case ReleaseOnReplace:
		if prev != 0 && prev != id {
			c.enqueue(prev)
		}
	case ReleaseImmediately:
		c.enqueue(id)
	}
	shmstore.Logger().Debug("compositor: commit", "surface", sid, "buffer", id, "damage", damage.Bounds())
	return nil
}

// upload copies img into dst, reallocating dst when the size changed.
func upload(dst *image.RGBA, img *pixel.Image) *image.RGBA {
	b := img.Bounds()
	if dst == nil || dst.Rect != b {
		dst = image.NewRGBA(b)
	}
	copy(dst.Pix, img.RGBAPixels(b))
	return dst
}

// DestroyBuffer unmaps a buffer. Unknown IDs are ignored.
func (c *Compositor) DestroyBuffer(id shmstore.BufferID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buffers[id]
	if !ok {
		return
	}
	delete(c.buffers, id)
	if err := c.alloc.Unmap(b.mem); err != nil {
		shmstore.Logger().Warn("compositor: unmapping buffer", "buffer", id, "err", err)
	}
	for _, s := range c.surfaces {
		if s.attached == id {
			s.attached = 0
		}
	}
}

// SetReleaseHandler installs the callback receiving release events.
func (c *Compositor) SetReleaseHandler(fn func(shmstore.BufferID)) {
	c.mu.Lock()
	c.onRelease = fn
	c.mu.Unlock()
}

// Release queues a release event for id if the buffer is held.
// Safe to call from any goroutine.
func (c *Compositor) Release(id shmstore.BufferID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.buffers[id]; ok && b.held {
		c.enqueue(id)
	}
}

// ReleaseAll queues a release event for every held buffer.
// Safe to call from any goroutine.
func (c *Compositor) ReleaseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, b := range c.buffers {
		if b.held {
			c.enqueue(id)
		}
	}
}

// enqueue adds a release event. Callers hold c.mu.
func (c *Compositor) enqueue(id shmstore.BufferID) {
	c.buffers[id].held = false
	c.events.Add(id)
	c.cond.Broadcast()
}

// Dispatch delivers all queued events without blocking and returns how
// many were delivered.
func (c *Compositor) Dispatch() int {
	c.mu.Lock()
	var ids []shmstore.BufferID
	for c.events.Length() > 0 {
		id := c.events.Remove().(shmstore.BufferID)
		// A buffer destroyed after its release was queued gets no event.
		if _, ok := c.buffers[id]; ok {
			ids = append(ids, id)
		}
	}
	fn := c.onRelease
	c.mu.Unlock()

	if fn != nil {
		for _, id := range ids {
			fn(id)
		}
	}
	return len(ids)
}

// BlockUntilAnyEvent waits until at least one event is queued and
// dispatches the queue. With ReleaseManually it waits until another
// goroutine calls Release or ReleaseAll.
func (c *Compositor) BlockUntilAnyEvent() error {
	c.mu.Lock()
	for c.events.Length() == 0 && !c.closed {
		c.cond.Wait()
	}
	closed := c.closed && c.events.Length() == 0
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	c.Dispatch()
	return nil
}

// Pending returns the number of queued events.
func (c *Compositor) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events.Length()
}

// Buffers returns the number of registered buffers.
func (c *Compositor) Buffers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffers)
}

// Held reports whether the compositor still holds id.
func (c *Compositor) Held(id shmstore.BufferID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buffers[id]
	return ok && b.held
}

// Attached returns the buffer last committed on a surface, or 0.
func (c *Compositor) Attached(sid shmstore.SurfaceID) shmstore.BufferID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.surfaces[sid]; s != nil {
		return s.attached
	}
	return 0
}

// Commits returns the number of commits on a surface.
func (c *Compositor) Commits(sid shmstore.SurfaceID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := c.surfaces[sid]; s != nil {
		return s.commits
	}
	return 0
}

// Damage returns the damage accumulated on a surface since the last call.
func (c *Compositor) Damage(sid shmstore.SurfaceID) region.Region {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.surfaces[sid]
	if s == nil {
		return region.Region{}
	}
	d := s.damage
	s.damage = region.Region{}
	return d
}

// Snapshot returns a copy of the content last committed on a surface, or
// nil if nothing was committed.
func (c *Compositor) Snapshot(sid shmstore.SurfaceID) *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.surfaces[sid]
	if s == nil || s.content == nil {
		return nil
	}
	out := image.NewRGBA(s.content.Rect)
	copy(out.Pix, s.content.Pix)
	return out
}

// Close unmaps all buffers and wakes blocked waiters.
func (c *Compositor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for id, b := range c.buffers {
		if err := c.alloc.Unmap(b.mem); err != nil {
			errs = append(errs, fmt.Errorf("buffer %d: %w", id, err))
		}
	}
	c.buffers = make(map[shmstore.BufferID]*buffer)
	c.cond.Broadcast()
	return errors.Join(errs...)
}
