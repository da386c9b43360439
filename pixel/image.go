package pixel

import (
	"errors"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Common errors for image operations.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("pixel: invalid dimensions")

	// ErrInvalidFormat is returned when the format is not recognized.
	ErrInvalidFormat = errors.New("pixel: invalid format")

	// ErrInvalidStride is returned when stride is less than minimum required.
	ErrInvalidStride = errors.New("pixel: stride too small for width")

	// ErrDataTooSmall is returned when provided data is smaller than required.
	ErrDataTooSmall = errors.New("pixel: data buffer too small")
)

// Image is a view over 32-bit pixel memory.
//
// Image does not own its memory. Views created by Sub share storage with
// their parent, and an Image built with FromRaw stays valid only as long as
// the underlying mapping does.
//
// The device pixel ratio records how many physical pixels make up one
// logical (device-independent) pixel along each axis.
//
// Image requires external synchronization for writes.
type Image struct {
	data   []byte
	width  int
	height int
	stride int
	format Format
	scale  float64
}

// New allocates a zeroed image in process memory.
func New(width, height int, format Format) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if !format.IsValid() {
		return nil, ErrInvalidFormat
	}
	stride := format.RowBytes(width)
	return &Image{
		data:   make([]byte, stride*height),
		width:  width,
		height: height,
		stride: stride,
		format: format,
		scale:  1,
	}, nil
}

// FromRaw creates an Image over existing data without copying.
// The caller must ensure data remains valid for the lifetime of the Image.
// Stride must be at least format.RowBytes(width).
func FromRaw(data []byte, width, height int, format Format, stride int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if !format.IsValid() {
		return nil, ErrInvalidFormat
	}
	if stride < format.RowBytes(width) {
		return nil, ErrInvalidStride
	}
	need := stride*(height-1) + format.RowBytes(width)
	if len(data) < need {
		return nil, ErrDataTooSmall
	}
	return &Image{
		data:   data[:need:need],
		width:  width,
		height: height,
		stride: stride,
		format: format,
		scale:  1,
	}, nil
}

// Width returns the image width in physical pixels.
func (m *Image) Width() int { return m.width }

// Height returns the image height in physical pixels.
func (m *Image) Height() int { return m.height }

// Stride returns the number of bytes per row (including padding).
func (m *Image) Stride() int { return m.stride }

// Format returns the pixel format.
func (m *Image) Format() Format { return m.format }

// Data returns the raw pixel memory of the view.
func (m *Image) Data() []byte { return m.data }

// Size returns the image size in physical pixels.
func (m *Image) Size() image.Point { return image.Pt(m.width, m.height) }

// Bounds returns the image rectangle, anchored at the origin.
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// ByteSize returns stride × height, the size of the memory the image spans.
// Two images with equal ByteSize can exchange pixel rows without clipping.
func (m *Image) ByteSize() int {
	return m.stride * m.height
}

// DevicePixelRatio returns the number of physical pixels per logical pixel.
func (m *Image) DevicePixelRatio() float64 {
	if m.scale <= 0 {
		return 1
	}
	return m.scale
}

// SetDevicePixelRatio sets the number of physical pixels per logical pixel.
// Non-positive values reset the ratio to 1.
func (m *Image) SetDevicePixelRatio(f float64) {
	if f <= 0 {
		f = 1
	}
	m.scale = f
}

// Sub returns a view of rc within the image.
// The returned Image shares memory with m and keeps its stride and device
// pixel ratio. Returns nil if rc is empty after clipping to the bounds.
func (m *Image) Sub(rc image.Rectangle) *Image {
	rc = rc.Intersect(m.Bounds())
	if rc.Empty() {
		return nil
	}
	off := rc.Min.Y*m.stride + rc.Min.X*BytesPerPixel
	end := (rc.Max.Y-1)*m.stride + rc.Max.X*BytesPerPixel
	return &Image{
		data:   m.data[off:end:end],
		width:  rc.Dx(),
		height: rc.Dy(),
		stride: m.stride,
		format: m.format,
		scale:  m.scale,
	}
}

// RGBA returns an *image.RGBA sharing the image memory.
//
// Bytes are exposed in memory order; for formats with SwapRB set the R and
// B fields of the returned image's colors are swapped. Channel-agnostic
// operations (copies, scaling, premultiplied source-over) are unaffected.
func (m *Image) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    m.data,
		Stride: m.stride,
		Rect:   m.Bounds(),
	}
}

// PixelBytes returns the four bytes of pixel (x, y) in memory order.
// Returns nil if coordinates are out of bounds.
func (m *Image) PixelBytes(x, y int) []byte {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return nil
	}
	off := y*m.stride + x*BytesPerPixel
	return m.data[off : off+BytesPerPixel : off+BytesPerPixel]
}

// RGBAAt returns the premultiplied color of pixel (x, y).
// Formats without alpha report a = 255.
func (m *Image) RGBAAt(x, y int) color.RGBA {
	p := m.PixelBytes(x, y)
	if p == nil {
		return color.RGBA{}
	}
	c := color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
	if m.format.Info().SwapRB {
		c.R, c.B = c.B, c.R
	}
	if !m.format.HasAlpha() {
		c.A = 0xff
	}
	return c
}

// SetRGBA sets pixel (x, y) to the premultiplied color c.
func (m *Image) SetRGBA(x, y int, c color.RGBA) {
	p := m.PixelBytes(x, y)
	if p == nil {
		return
	}
	c = m.memoryOrder(c)
	p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
}

// Fill replaces every pixel of rc with c.
func (m *Image) Fill(rc image.Rectangle, c color.Color) {
	rc = rc.Intersect(m.Bounds())
	if rc.Empty() {
		return
	}
	src := image.NewUniform(m.memoryOrder(color.RGBAModel.Convert(c).(color.RGBA)))
	draw.Draw(m.RGBA(), rc, src, image.Point{}, draw.Src)
}

// Clear sets every pixel of rc to transparent black.
func (m *Image) Clear(rc image.Rectangle) {
	m.Fill(rc, color.Transparent)
}

// RGBAPixels returns the pixels of rc packed densely in R, G, B, A order,
// as expected by texture uploads. Formats without alpha get a = 255.
func (m *Image) RGBAPixels(rc image.Rectangle) []byte {
	rc = rc.Intersect(m.Bounds())
	if rc.Empty() {
		return nil
	}
	info := m.format.Info()
	rowBytes := rc.Dx() * BytesPerPixel
	out := make([]byte, rowBytes*rc.Dy())
	for y := rc.Min.Y; y < rc.Max.Y; y++ {
		src := m.data[y*m.stride+rc.Min.X*BytesPerPixel:][:rowBytes]
		dst := out[(y-rc.Min.Y)*rowBytes:][:rowBytes]
		copy(dst, src)
		if !info.SwapRB && info.HasAlpha {
			continue
		}
		for i := 0; i < rowBytes; i += BytesPerPixel {
			if info.SwapRB {
				dst[i], dst[i+2] = dst[i+2], dst[i]
			}
			if !info.HasAlpha {
				dst[i+3] = 0xff
			}
		}
	}
	return out
}

// memoryOrder converts c into the byte order of the image format.
func (m *Image) memoryOrder(c color.RGBA) color.RGBA {
	if m.format.Info().SwapRB {
		c.R, c.B = c.B, c.R
	}
	return c
}
