package pixel

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Op is a Porter-Duff composition operator.
type Op uint8

const (
	// OpSource replaces destination pixels with source pixels.
	OpSource Op = iota

	// OpOver composites premultiplied source pixels over the destination.
	OpOver
)

// String returns a string representation of the operator.
func (o Op) String() string {
	switch o {
	case OpSource:
		return "Source"
	case OpOver:
		return "Over"
	default:
		return "Unknown"
	}
}

func (o Op) drawOp() draw.Op {
	if o == OpOver {
		return draw.Over
	}
	return draw.Src
}

// Draw copies the sr rectangle of src into the dr rectangle of dst.
//
// Both rectangles are in physical pixels of their image. When their sizes
// differ the source is scaled with nearest-neighbour sampling, which keeps
// integer device-pixel-ratio scaling exact. Parts of sr outside src and parts
// of dr outside dst are clipped away.
func Draw(dst *Image, dr image.Rectangle, src *Image, sr image.Rectangle, op Op) {
	if dst == nil || src == nil {
		return
	}
	dr, sr = clipSource(dr, sr, src.Bounds())
	if dr.Empty() || sr.Empty() {
		return
	}

	var s image.Image = src.RGBA()
	if src.format.Info().SwapRB != dst.format.Info().SwapRB {
		s = swapped{src.RGBA()}
	}

	if dr.Size() == sr.Size() {
		draw.Copy(dst.RGBA(), dr.Min, s, sr, op.drawOp(), nil)
		return
	}
	draw.NearestNeighbor.Scale(dst.RGBA(), dr, s, sr, op.drawOp(), nil)
}

// clipSource shrinks sr to bounds and moves the edges of dr by the same
// proportion.
func clipSource(dr, sr, bounds image.Rectangle) (image.Rectangle, image.Rectangle) {
	clipped := sr.Intersect(bounds)
	if clipped == sr || clipped.Empty() {
		return dr, clipped
	}
	fx := float64(dr.Dx()) / float64(sr.Dx())
	fy := float64(dr.Dy()) / float64(sr.Dy())
	out := image.Rect(
		dr.Min.X+int(float64(clipped.Min.X-sr.Min.X)*fx+0.5),
		dr.Min.Y+int(float64(clipped.Min.Y-sr.Min.Y)*fy+0.5),
		dr.Max.X-int(float64(sr.Max.X-clipped.Max.X)*fx+0.5),
		dr.Max.Y-int(float64(sr.Max.Y-clipped.Max.Y)*fy+0.5),
	)
	return out, clipped
}

// swapped presents an RGBA image with its R and B channels exchanged, for
// copies between formats of opposite byte order.
type swapped struct {
	m *image.RGBA
}

func (s swapped) ColorModel() color.Model { return color.RGBAModel }

func (s swapped) Bounds() image.Rectangle { return s.m.Rect }

func (s swapped) At(x, y int) color.Color { return s.RGBAAt(x, y) }

func (s swapped) RGBAAt(x, y int) color.RGBA {
	c := s.m.RGBAAt(x, y)
	c.R, c.B = c.B, c.R
	return c
}

func (s swapped) RGBA64At(x, y int) color.RGBA64 {
	r, g, b, a := s.RGBAAt(x, y).RGBA()
	return color.RGBA64{R: uint16(r), G: uint16(g), B: uint16(b), A: uint16(a)}
}
