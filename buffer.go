package shmstore

import (
	"fmt"
	"image"
	"math"

	"github.com/gogpu/shmstore/pixel"
	"github.com/gogpu/shmstore/region"
)

// Buffer is one shared-memory image registered with the compositor.
//
// A buffer whose allocation failed is kept but unusable: it has no image
// and is never selected for painting.
type Buffer struct {
	display *Display
	size    image.Point
	scale   float64
	err     error

	mem []byte
	img *pixel.Image
	id  BufferID

	busy            bool
	age             int
	dirty           region.Region
	deleteOnRelease bool
	destroyed       bool

	margins    Margins
	marginsImg *pixel.Image
}

// newBuffer allocates a size buffer in physical pixels. Failures are
// logged and leave the buffer unusable.
func newBuffer(d *Display, size image.Point, format pixel.Format, scale float64) *Buffer {
	b := &Buffer{display: d, size: size, scale: scale}
	// A new buffer has seen nothing yet.
	b.dirty = region.New(image.Rectangle{Max: logicalSize(size, scale)})

	if err := b.allocate(format); err != nil {
		b.err = err
		Logger().Warn("shmstore: could not create buffer", "size", size, "format", format, "err", err)
	}
	return b
}

func (b *Buffer) allocate(format pixel.Format) error {
	if b.size.X <= 0 || b.size.Y <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSize, b.size)
	}
	stride := format.RowBytes(b.size.X)
	d := b.display

	h, err := d.alloc.Allocate(stride * b.size.Y)
	if err != nil {
		return fmt.Errorf("shmstore: allocating buffer memory: %w", err)
	}
	defer func() { _ = h.Close() }()

	mem, err := d.alloc.Map(h)
	if err != nil {
		return fmt.Errorf("shmstore: mapping buffer memory: %w", err)
	}

	img, err := pixel.FromRaw(mem, b.size.X, b.size.Y, format, stride)
	if err != nil {
		_ = d.alloc.Unmap(mem)
		return err
	}
	img.SetDevicePixelRatio(b.scale)

	id, err := d.presenter.CreateBuffer(h, b.size.X, b.size.Y, stride, format)
	if err != nil {
		_ = d.alloc.Unmap(mem)
		return fmt.Errorf("shmstore: registering buffer: %w", err)
	}

	b.mem = mem
	b.img = img
	b.id = id
	d.register(b)
	Logger().Debug("shmstore: created buffer", "id", id, "size", b.size, "format", format)
	return nil
}

// Usable reports whether the buffer has memory and can be painted.
func (b *Buffer) Usable() bool { return b.img != nil }

// Err returns the error that made the buffer unusable, if any.
func (b *Buffer) Err() error { return b.err }

// ID returns the compositor buffer ID, or 0 for an unusable buffer.
func (b *Buffer) ID() BufferID { return b.id }

// Busy reports whether the compositor currently holds the buffer.
func (b *Buffer) Busy() bool { return b.busy }

// Age returns how many times another buffer was selected for painting
// since this one was last the back buffer.
func (b *Buffer) Age() int { return b.age }

// Size returns the buffer size in physical pixels.
func (b *Buffer) Size() image.Point { return b.size }

// Image returns the whole buffer image, or nil for an unusable buffer.
func (b *Buffer) Image() *pixel.Image { return b.img }

// DirtyRegion returns the logical area whose content in this buffer is
// older than the current back buffer.
func (b *Buffer) DirtyRegion() region.Region { return b.dirty.Clone() }

// ImageInsideMargins returns the part of the image inside m, where m is in
// logical units. The view is cached until the margins change. It returns
// nil when the margins leave no content area.
func (b *Buffer) ImageInsideMargins(m Margins) *pixel.Image {
	if b.img == nil {
		return nil
	}
	if m.IsZero() {
		return b.img
	}
	pm := m.Scaled(b.img.DevicePixelRatio())
	if b.marginsImg == nil || pm != b.margins {
		b.margins = pm
		b.marginsImg = b.img.Sub(pm.Inset(b.img.Bounds()))
	}
	return b.marginsImg
}

// destroy releases the mapping and the compositor buffer. Safe to call
// more than once.
func (b *Buffer) destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	d := b.display
	if b.id != 0 {
		d.unregister(b)
		d.presenter.DestroyBuffer(b.id)
		Logger().Debug("shmstore: destroyed buffer", "id", b.id)
	}
	if b.mem != nil {
		if err := d.alloc.Unmap(b.mem); err != nil {
			Logger().Warn("shmstore: unmapping buffer", "id", b.id, "err", err)
		}
	}
	b.mem = nil
	b.img = nil
	b.marginsImg = nil
}

// logicalSize converts a physical size to logical units.
func logicalSize(size image.Point, scale float64) image.Point {
	if scale == 1 {
		return size
	}
	return image.Pt(int(math.Round(float64(size.X)/scale)), int(math.Round(float64(size.Y)/scale)))
}

// physicalSize converts a logical size to physical pixels.
func physicalSize(size image.Point, scale float64) image.Point {
	if scale == 1 {
		return size
	}
	return image.Pt(int(math.Round(float64(size.X)*scale)), int(math.Round(float64(size.Y)*scale)))
}
