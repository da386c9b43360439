package shmstore

import (
	"github.com/gogpu/shmstore/pixel"
	"github.com/gogpu/shmstore/region"
	"github.com/gogpu/shmstore/shm"
)

// BufferID identifies a buffer registered with the compositor.
// The zero value is never a valid ID.
type BufferID uint32

// SurfaceID identifies a compositor surface.
type SurfaceID uint32

// Presenter is the compositor side of the buffer protocol.
//
// A Display calls Presenter from a single goroutine. Implementations deliver
// release events through the handler installed with SetReleaseHandler, on
// the goroutine that dispatches events.
type Presenter interface {
	// CreateBuffer registers width×height pixels of format, laid out with
	// stride bytes per row, in the memory behind h. The handle may be
	// closed as soon as CreateBuffer returns.
	CreateBuffer(h shm.Handle, width, height, stride int, format pixel.Format) (BufferID, error)

	// Commit attaches buffer to surface and presents it. damage is in
	// logical units of the surface and must not be retained unless cloned.
	// The buffer stays busy until a release event arrives for it.
	Commit(surface SurfaceID, buffer BufferID, damage region.Region) error

	// DestroyBuffer drops a buffer. Unknown IDs are ignored.
	DestroyBuffer(id BufferID)

	// SetReleaseHandler installs the callback invoked when the compositor
	// is done reading a buffer.
	SetReleaseHandler(fn func(BufferID))
}

// EventPump blocks until the compositor delivers at least one event and
// dispatches it. Release handlers run before BlockUntilAnyEvent returns.
type EventPump interface {
	BlockUntilAnyEvent() error
}
