// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package decoration draws simple client-side window frames for shmstore.
//
// A Frame is a solid border with a title bar and a single-line title,
// rendered at the window's scale factor. It is what a window gets when the
// compositor does not draw decorations itself.
package decoration

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/shmstore"
	"github.com/gogpu/shmstore/pixel"
)

// Style controls the look of a Frame.
type Style struct {
	Border      color.RGBA
	TitleBar    color.RGBA
	Text        color.RGBA
	BorderWidth int // logical units
	TitleHeight int // logical units, including the top border
}

// DefaultStyle returns a dark frame with a 4 unit border and a 24 unit
// title bar.
func DefaultStyle() Style {
	return Style{
		Border:      color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff},
		TitleBar:    color.RGBA{R: 0x44, G: 0x44, B: 0x48, A: 0xff},
		Text:        color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff},
		BorderWidth: 4,
		TitleHeight: 24,
	}
}

// Option configures a Frame.
type Option func(*Frame)

// WithStyle sets the frame style.
func WithStyle(s Style) Option {
	return func(f *Frame) {
		f.style = s
	}
}

// WithFormat sets the pixel format of the frame image. It should match
// the format of the store's buffers.
func WithFormat(format pixel.Format) Option {
	return func(f *Frame) {
		if format.IsValid() {
			f.format = format
		}
	}
}

// Frame is a shmstore.Decoration drawn around a window's content.
type Frame struct {
	window gpucontext.WindowProvider
	title  string
	style  Style
	format pixel.Format

	img   *pixel.Image
	dirty bool
}

var _ shmstore.Decoration = (*Frame)(nil)

// New creates a frame for a window of the given logical size and scale.
func New(w gpucontext.WindowProvider, title string, opts ...Option) *Frame {
	f := &Frame{
		window: w,
		title:  title,
		style:  DefaultStyle(),
		format: pixel.FormatARGB8888,
		dirty:  true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Title returns the window title.
func (f *Frame) Title() string { return f.title }

// SetTitle changes the title and marks the frame dirty. Titles are drawn
// as printable ASCII; other characters show as '?'.
func (f *Frame) SetTitle(title string) {
	if title == f.title {
		return
	}
	f.title = title
	f.dirty = true
}

// Margins returns the border widths in logical units.
func (f *Frame) Margins() shmstore.Margins {
	bw := f.style.BorderWidth
	top := f.style.TitleHeight
	if top < bw {
		top = bw
	}
	return shmstore.Margins{Left: bw, Top: top, Right: bw, Bottom: bw}
}

// IsDirty reports whether the frame needs repainting.
func (f *Frame) IsDirty() bool { return f.dirty }

// Update marks the frame for repainting.
func (f *Frame) Update() { f.dirty = true }

// ContentImage returns the frame image, repainting it if dirty.
// Returns nil if the window has no size.
func (f *Frame) ContentImage() *pixel.Image {
	if f.dirty || f.img == nil {
		f.img = f.render()
		f.dirty = false
	}
	return f.img
}

// render paints the frame at logical size and scales it to the window's
// device pixel ratio.
func (f *Frame) render() *pixel.Image {
	w, h := f.window.Size()
	if w <= 0 || h <= 0 {
		return nil
	}
	m := f.Margins()
	size := image.Pt(w, h).Add(m.Size())

	// Logical rendering happens in R, G, B, A memory order so that the
	// x/image drawing helpers can be used directly.
	logical := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(logical, logical.Rect, image.NewUniform(f.style.Border), image.Point{}, draw.Src)
	bar := image.Rect(m.Left, m.Left, size.X-m.Right, m.Top)
	draw.Draw(logical, bar, image.NewUniform(f.style.TitleBar), image.Point{}, draw.Src)
	content := m.Inset(logical.Rect)
	draw.Draw(logical, content, image.Transparent, image.Point{}, draw.Src)
	f.drawTitle(logical, bar)

	src, err := pixel.FromRaw(logical.Pix, size.X, size.Y, pixel.FormatABGR8888, logical.Stride)
	if err != nil {
		shmstore.Logger().Warn("decoration: frame image", "err", err)
		return nil
	}

	scale := f.window.ScaleFactor()
	if scale <= 0 {
		scale = 1
	}
	phys := image.Pt(scaled(size.X, scale), scaled(size.Y, scale))
	dst, err := pixel.New(phys.X, phys.Y, f.format)
	if err != nil {
		shmstore.Logger().Warn("decoration: frame image", "size", phys, "err", err)
		return nil
	}
	dst.SetDevicePixelRatio(scale)
	pixel.Draw(dst, dst.Bounds(), src, src.Bounds(), pixel.OpSource)
	return dst
}

// drawTitle draws the title into bar, truncated to fit.
func (f *Frame) drawTitle(dst draw.Image, bar image.Rectangle) {
	face := basicfont.Face7x13
	const pad = 4
	maxWidth := fixed.I(bar.Dx() - 2*pad)
	if maxWidth <= 0 || f.title == "" {
		return
	}

	text := asciiTitle(f.title)
	for text != "" && font.MeasureString(face, text) > maxWidth {
		text = text[:len(text)-1]
	}

	metrics := face.Metrics()
	baseline := bar.Min.Y + (bar.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(f.style.Text),
		Face: face,
		Dot:  fixed.P(bar.Min.X+pad, baseline),
	}
	d.DrawString(text)
}

// asciiTitle replaces runes outside printable ASCII with '?'; the title
// face has no other glyphs.
func asciiTitle(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return '?'
		}
		return r
	}, s)
}

func scaled(v int, f float64) int {
	return int(float64(v)*f + 0.5)
}
