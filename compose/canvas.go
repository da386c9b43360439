// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compose

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/shmstore"
	"github.com/gogpu/shmstore/pixel"
	"github.com/gogpu/shmstore/region"
)

// Common errors returned by Canvas operations.
var (
	// ErrCanvasClosed is returned when operations are attempted on a closed canvas.
	ErrCanvasClosed = errors.New("compose: canvas is closed")

	// ErrNilSource is returned when a nil Source is passed.
	ErrNilSource = errors.New("compose: nil source")

	// ErrNoContent is returned when the source has nothing painted yet.
	ErrNoContent = errors.New("compose: source has no content")

	// ErrNoTextureCreator is returned when a texture must be created but
	// no gpucontext.TextureCreator is available.
	ErrNoTextureCreator = errors.New("compose: no texture creator")
)

// Source provides the image to upload. *shmstore.BackingStore implements
// Source.
type Source interface {
	ToImage() *pixel.Image
}

var _ Source = (*shmstore.BackingStore)(nil)

// textureDestroyer is implemented by textures that hold GPU resources.
type textureDestroyer interface {
	Destroy()
}

// Canvas mirrors a Source into a GPU texture.
type Canvas struct {
	src        Source
	texture    gpucontext.Texture
	oldTexture gpucontext.Texture // replaced texture awaiting destruction
	damage     region.Region      // logical units
	full       bool               // whole image needs upload
	closed     bool
}

// New creates a Canvas for src. The texture is created on first Flush.
func New(src Source) (*Canvas, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	return &Canvas{src: src, full: true}, nil
}

// MarkDirty adds r, in logical content units, to the area uploaded on the
// next Flush.
func (c *Canvas) MarkDirty(r region.Region) {
	c.damage.Union(r)
}

// MarkAllDirty schedules a full upload on the next Flush.
func (c *Canvas) MarkAllDirty() {
	c.full = true
}

// IsDirty reports whether an upload is pending.
func (c *Canvas) IsDirty() bool {
	return c.full || !c.damage.IsEmpty()
}

// Texture returns the current texture without flushing, or nil.
func (c *Canvas) Texture() gpucontext.Texture {
	return c.texture
}

// Flush uploads pending changes and returns the texture.
//
// The texture is created through creator when it does not exist yet or the
// source size changed. creator may be nil when a texture already exists.
func (c *Canvas) Flush(creator gpucontext.TextureCreator) (gpucontext.Texture, error) {
	if c.closed {
		return nil, ErrCanvasClosed
	}
	img := c.src.ToImage()
	if img == nil {
		return nil, ErrNoContent
	}

	if c.texture != nil && (c.texture.Width() != img.Width() || c.texture.Height() != img.Height()) {
		c.retire()
	}
	if c.texture == nil {
		return c.create(creator, img)
	}
	if !c.IsDirty() {
		return c.texture, nil
	}

	if err := c.update(img); err != nil {
		return nil, err
	}
	c.damage.Clear()
	c.full = false
	return c.texture, nil
}

// update uploads the damaged part of img into the existing texture.
func (c *Canvas) update(img *pixel.Image) error {
	bounds := img.Bounds()
	if ru, ok := c.texture.(gpucontext.TextureRegionUpdater); ok && !c.full {
		for _, rc := range c.damage.Scaled(img.DevicePixelRatio()).Intersect(bounds).Rects() {
			if err := ru.UpdateRegion(rc.Min.X, rc.Min.Y, rc.Dx(), rc.Dy(), img.RGBAPixels(rc)); err != nil {
				return fmt.Errorf("compose: texture region update failed: %w", err)
			}
		}
		return nil
	}
	if u, ok := c.texture.(gpucontext.TextureUpdater); ok {
		if err := u.UpdateData(img.RGBAPixels(bounds)); err != nil {
			return fmt.Errorf("compose: texture update failed: %w", err)
		}
		return nil
	}
	return fmt.Errorf("compose: texture %T cannot be updated", c.texture)
}

// create uploads img into a new texture and destroys the retired one.
func (c *Canvas) create(creator gpucontext.TextureCreator, img *pixel.Image) (gpucontext.Texture, error) {
	if creator == nil {
		return nil, ErrNoTextureCreator
	}
	tex, err := creator.NewTextureFromRGBA(img.Width(), img.Height(), img.RGBAPixels(img.Bounds()))
	if err != nil {
		return nil, fmt.Errorf("compose: NewTextureFromRGBA failed: %w", err)
	}
	// Buffer pixels are premultiplied.
	if pt, ok := tex.(interface{ SetPremultiplied(bool) }); ok {
		pt.SetPremultiplied(true)
	}
	shmstore.Logger().Debug("compose: texture created", "width", img.Width(), "height", img.Height())

	c.texture = tex
	destroy(c.oldTexture)
	c.oldTexture = nil
	c.damage.Clear()
	c.full = false
	return tex, nil
}

// retire keeps the current texture alive until its replacement exists.
func (c *Canvas) retire() {
	destroy(c.oldTexture)
	c.oldTexture = c.texture
	c.texture = nil
}

func destroy(t gpucontext.Texture) {
	if d, ok := t.(textureDestroyer); ok {
		d.Destroy()
	}
}

// RenderTo flushes the canvas and draws it at (0, 0).
func (c *Canvas) RenderTo(dc gpucontext.TextureDrawer) error {
	return c.RenderToPosition(dc, 0, 0)
}

// RenderToPosition flushes the canvas and draws it at (x, y).
func (c *Canvas) RenderToPosition(dc gpucontext.TextureDrawer, x, y float32) error {
	if c.closed {
		return ErrCanvasClosed
	}
	tex, err := c.Flush(dc.TextureCreator())
	if err != nil {
		return err
	}
	return dc.DrawTexture(tex, x, y)
}

// Close destroys the textures. Close is idempotent.
func (c *Canvas) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	destroy(c.oldTexture)
	destroy(c.texture)
	c.oldTexture = nil
	c.texture = nil
	c.src = nil
	return nil
}
