package shmstore

import (
	"image"
	"math"

	"github.com/gogpu/shmstore/pixel"
	"github.com/gogpu/shmstore/region"
)

// Margins are the decoration border widths in logical units.
type Margins struct {
	Left, Top, Right, Bottom int
}

// IsZero reports whether all margins are zero.
func (m Margins) IsZero() bool {
	return m == Margins{}
}

// Size returns the total horizontal and vertical extent of the margins.
func (m Margins) Size() image.Point {
	return image.Pt(m.Left+m.Right, m.Top+m.Bottom)
}

// Scaled returns the margins multiplied by f, rounded to whole pixels.
func (m Margins) Scaled(f float64) Margins {
	if f == 1 {
		return m
	}
	r := func(v int) int { return int(math.Round(float64(v) * f)) }
	return Margins{Left: r(m.Left), Top: r(m.Top), Right: r(m.Right), Bottom: r(m.Bottom)}
}

// Inset returns rc shrunk by the margins.
func (m Margins) Inset(rc image.Rectangle) image.Rectangle {
	return image.Rect(rc.Min.X+m.Left, rc.Min.Y+m.Top, rc.Max.X-m.Right, rc.Max.Y-m.Bottom)
}

// Decoration is a client-side window frame drawn into the margins of the
// back buffer.
type Decoration interface {
	// Margins returns the frame border widths in logical units.
	Margins() Margins

	// IsDirty reports whether the frame must be repainted and copied into
	// the buffer before the next commit.
	IsDirty() bool

	// Update marks the frame for repainting. Called when the buffer
	// geometry changes.
	Update()

	// ContentImage returns the frame image covering the whole buffer,
	// repainting it first if dirty. Only the parts inside the margins are
	// used.
	ContentImage() *pixel.Image
}

// updateDecorations copies the four frame borders from the decoration
// image into the back buffer and marks them stale in all other buffers.
// It returns the painted borders in logical surface coordinates. The back
// buffer must not be busy.
func (s *BackingStore) updateDecorations() region.Region {
	deco := s.window.Decoration()
	src := deco.ContentImage()
	if src == nil || s.back == nil || !s.back.Usable() || s.back.busy {
		return region.Region{}
	}
	dst := s.back.img

	srcDpr := src.DevicePixelRatio()
	dstDpr := dst.DevicePixelRatio()
	w := int(math.Round(float64(src.Width()) / srcDpr))
	h := int(math.Round(float64(src.Height()) / srcDpr))
	m := deco.Margins()

	borders := [...]image.Rectangle{
		image.Rect(0, 0, w, m.Top),
		image.Rect(0, 0, m.Left, h),
		image.Rect(w-m.Right, 0, w, h),
		image.Rect(0, h-m.Bottom, w, h),
	}

	var dirty region.Region
	for _, rc := range borders {
		if rc.Empty() {
			continue
		}
		pixel.Draw(dst, region.ScaleRect(rc, dstDpr), src, region.ScaleRect(rc, srcDpr), pixel.OpSource)
		dirty.Add(rc)
	}
	s.updateDirtyStates(dirty)
	return dirty
}
