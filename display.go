package shmstore

import (
	"errors"
	"fmt"

	"github.com/gogpu/shmstore/shm"
)

// Errors returned by Display and BackingStore.
var (
	// ErrNoEventPump is returned when a store must wait for a buffer
	// release but the display has no way to read compositor events.
	ErrNoEventPump = errors.New("shmstore: display has no event pump")

	// ErrNoBackBuffer is returned by Flush before the first paint.
	ErrNoBackBuffer = errors.New("shmstore: no back buffer")

	// ErrCapacityExhausted is returned when every buffer slot holds an
	// unusable buffer and none can be freed by waiting.
	ErrCapacityExhausted = errors.New("shmstore: no usable buffer can be created")

	// ErrClosed is returned when a closed store is used.
	ErrClosed = errors.New("shmstore: backing store is closed")

	// ErrInvalidSize is returned when painting without a positive size.
	ErrInvalidSize = errors.New("shmstore: invalid size")
)

// Display connects backing stores to a compositor.
//
// It owns the registry mapping compositor buffer IDs to live buffers, so
// that release events can be routed to a buffer and release events for
// buffers that no longer exist are ignored.
//
// Display is not safe for concurrent use. Release events must be
// dispatched on the goroutine that uses the display.
type Display struct {
	alloc     shm.Allocator
	presenter Presenter
	pump      EventPump

	buffers map[BufferID]*Buffer
	stores  []*BackingStore
}

// NewDisplay creates a display presenting through p with memory from alloc.
//
// If pump is nil and p implements EventPump, p is used to wait for events.
func NewDisplay(alloc shm.Allocator, p Presenter, pump EventPump) *Display {
	if pump == nil {
		pump, _ = p.(EventPump)
	}
	d := &Display{
		alloc:     alloc,
		presenter: p,
		pump:      pump,
		buffers:   make(map[BufferID]*Buffer),
	}
	p.SetReleaseHandler(d.bufferReleased)
	return d
}

// Allocator returns the shared-memory allocator.
func (d *Display) Allocator() shm.Allocator { return d.alloc }

// Presenter returns the compositor connection.
func (d *Display) Presenter() Presenter { return d.presenter }

// LiveBuffers returns the number of buffers registered with the compositor.
func (d *Display) LiveBuffers() int { return len(d.buffers) }

// Lookup returns the live buffer registered under id.
func (d *Display) Lookup(id BufferID) (*Buffer, bool) {
	b, ok := d.buffers[id]
	return b, ok
}

// Reconnected tells every store that the compositor connection was
// re-established. All buffers created on the old connection are dropped.
func (d *Display) Reconnected() {
	Logger().Info("shmstore: compositor connection reestablished", "stores", len(d.stores))
	for _, s := range append([]*BackingStore(nil), d.stores...) {
		s.Reconnected()
	}
	// Buffers still pending a release on the old connection never get one.
	for _, b := range d.buffers {
		if b.deleteOnRelease {
			b.destroy()
		}
	}
}

// Close destroys buffers that are still waiting for a release after their
// store went away, such as one-shot child window buffers.
func (d *Display) Close() {
	for _, s := range append([]*BackingStore(nil), d.stores...) {
		_ = s.Close()
	}
	for _, b := range d.buffers {
		b.destroy()
	}
}

// bufferReleased handles a release event from the compositor.
func (d *Display) bufferReleased(id BufferID) {
	b, ok := d.buffers[id]
	if !ok {
		Logger().Warn("shmstore: release for unknown buffer", "id", id)
		return
	}
	b.busy = false
	if b.deleteOnRelease {
		b.destroy()
	}
}

// waitForEvents blocks until at least one compositor event is dispatched.
func (d *Display) waitForEvents() error {
	if d.pump == nil {
		return ErrNoEventPump
	}
	if err := d.pump.BlockUntilAnyEvent(); err != nil {
		return fmt.Errorf("shmstore: reading compositor events: %w", err)
	}
	return nil
}

func (d *Display) register(b *Buffer) {
	d.buffers[b.id] = b
}

func (d *Display) unregister(b *Buffer) {
	if d.buffers[b.id] == b {
		delete(d.buffers, b.id)
	}
}

func (d *Display) addStore(s *BackingStore) {
	d.stores = append(d.stores, s)
}

func (d *Display) removeStore(s *BackingStore) {
	for i, have := range d.stores {
		if have == s {
			d.stores = append(d.stores[:i], d.stores[i+1:]...)
			return
		}
	}
}
