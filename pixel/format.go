// Package pixel provides the 32-bit pixel formats and image views used by
// shared-memory buffers.
//
// All formats are four bytes per pixel. An Image is a view over raw memory
// (usually a shared-memory mapping) with an explicit stride, so cropped
// views share storage with their parent.
package pixel

import "github.com/gogpu/gputypes"

// Format represents a 32-bit pixel storage format.
//
// Names follow the DRM/wl_shm convention: they describe a little-endian
// 32-bit word, so ARGB8888 is stored in memory as B, G, R, A.
type Format uint8

const (
	// FormatARGB8888 is premultiplied ARGB, stored as B, G, R, A.
	// This is the default format for surfaces with transparency.
	FormatARGB8888 Format = iota

	// FormatXRGB8888 is opaque RGB, stored as B, G, R, X.
	FormatXRGB8888

	// FormatABGR8888 is premultiplied ABGR, stored as R, G, B, A.
	FormatABGR8888

	// FormatXBGR8888 is opaque BGR, stored as R, G, B, X.
	FormatXBGR8888

	// formatCount is the number of formats (for internal use).
	formatCount
)

// BytesPerPixel is the pixel size shared by every Format.
const BytesPerPixel = 4

// FormatInfo contains metadata about a pixel format.
type FormatInfo struct {
	// ShmCode is the wl_shm format code announced to the compositor.
	ShmCode uint32

	// HasAlpha indicates if the fourth byte carries alpha.
	HasAlpha bool

	// IsPremultiplied indicates if alpha is premultiplied.
	IsPremultiplied bool

	// SwapRB indicates the red and blue bytes are swapped relative to
	// R, G, B, A memory order.
	SwapRB bool

	// TextureFormat is the GPU texture format with the same memory layout.
	TextureFormat gputypes.TextureFormat
}

// fourcc builds a DRM fourcc code.
func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// formatInfoTable contains metadata for each format.
var formatInfoTable = [formatCount]FormatInfo{
	FormatARGB8888: {
		ShmCode:         0,
		HasAlpha:        true,
		IsPremultiplied: true,
		SwapRB:          true,
		TextureFormat:   gputypes.TextureFormatBGRA8Unorm,
	},
	FormatXRGB8888: {
		ShmCode:       1,
		SwapRB:        true,
		TextureFormat: gputypes.TextureFormatBGRA8Unorm,
	},
	FormatABGR8888: {
		ShmCode:         fourcc('A', 'B', '2', '4'),
		HasAlpha:        true,
		IsPremultiplied: true,
		TextureFormat:   gputypes.TextureFormatRGBA8Unorm,
	},
	FormatXBGR8888: {
		ShmCode:       fourcc('X', 'B', '2', '4'),
		TextureFormat: gputypes.TextureFormatRGBA8Unorm,
	},
}

// Info returns the FormatInfo for this format.
func (f Format) Info() FormatInfo {
	if f >= formatCount {
		return FormatInfo{}
	}
	return formatInfoTable[f]
}

// IsValid returns true if the format is a valid known format.
func (f Format) IsValid() bool {
	return f < formatCount
}

// HasAlpha returns true if this format has an alpha channel.
func (f Format) HasAlpha() bool {
	return f.Info().HasAlpha
}

// ShmCode returns the wl_shm format code for this format.
func (f Format) ShmCode() uint32 {
	return f.Info().ShmCode
}

// TextureFormat returns the GPU texture format sharing this memory layout.
// Unknown formats map to gputypes.TextureFormatUndefined.
func (f Format) TextureFormat() gputypes.TextureFormat {
	return f.Info().TextureFormat
}

// AlphaMode returns how a compositor should treat the alpha byte.
func (f Format) AlphaMode() gputypes.CompositeAlphaMode {
	if f.HasAlpha() {
		return gputypes.CompositeAlphaModePremultiplied
	}
	return gputypes.CompositeAlphaModeOpaque
}

// RowBytes calculates the number of bytes needed for a row of the given width.
func (f Format) RowBytes(width int) int {
	return width * BytesPerPixel
}

// ImageBytes calculates the total number of bytes needed for an image.
func (f Format) ImageBytes(width, height int) int {
	return f.RowBytes(width) * height
}

// String returns a string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatARGB8888:
		return "ARGB8888"
	case FormatXRGB8888:
		return "XRGB8888"
	case FormatABGR8888:
		return "ABGR8888"
	case FormatXBGR8888:
		return "XBGR8888"
	default:
		return "Unknown"
	}
}

// FormatFromShmCode returns the Format announced with a wl_shm code.
func FormatFromShmCode(code uint32) (Format, bool) {
	for f := range formatCount {
		if formatInfoTable[f].ShmCode == code {
			return f, true
		}
	}
	return 0, false
}
