// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package region provides a set of integer rectangles used for damage and
// staleness tracking.
//
// A Region stores its area as a list of pairwise disjoint rectangles, so
// iterating Rects never visits a pixel twice. This matters when the region
// drives pixel copies: overlapping rectangles would copy the same pixels
// more than once.
//
// The zero Region is empty and ready to use.
package region

import "image"

// Region is a set of pixels described by disjoint rectangles.
//
// Region is not safe for concurrent use.
type Region struct {
	rects []image.Rectangle
}

// New returns a region covering the union of rects.
// Empty rectangles are ignored.
func New(rects ...image.Rectangle) Region {
	var r Region
	for _, rc := range rects {
		r.Add(rc)
	}
	return r
}

// Rect returns a region covering a single rectangle.
func Rect(x, y, width, height int) Region {
	return New(image.Rect(x, y, x+width, y+height))
}

// Add adds rc to the region.
func (r *Region) Add(rc image.Rectangle) {
	rc = rc.Canon()
	if rc.Empty() {
		return
	}
	// Only the parts of rc not yet covered are appended, which keeps the
	// stored rectangles disjoint.
	pending := []image.Rectangle{rc}
	for _, have := range r.rects {
		if len(pending) == 0 {
			return
		}
		next := pending[:0:0]
		for _, p := range pending {
			next = append(next, subtractRect(p, have)...)
		}
		pending = next
	}
	r.rects = append(r.rects, pending...)
}

// Union adds every rectangle of other to the region.
func (r *Region) Union(other Region) {
	for _, rc := range other.rects {
		r.Add(rc)
	}
}

// Subtract removes rc from the region.
func (r *Region) Subtract(rc image.Rectangle) {
	rc = rc.Canon()
	if rc.Empty() || len(r.rects) == 0 {
		return
	}
	out := make([]image.Rectangle, 0, len(r.rects))
	for _, have := range r.rects {
		out = append(out, subtractRect(have, rc)...)
	}
	r.rects = out
}

// Intersect returns the part of the region inside rc.
func (r Region) Intersect(rc image.Rectangle) Region {
	var out Region
	for _, have := range r.rects {
		if in := have.Intersect(rc); !in.Empty() {
			// Pieces of a disjoint set stay disjoint after clipping.
			out.rects = append(out.rects, in)
		}
	}
	return out
}

// Translated returns a copy of the region moved by (dx, dy).
func (r Region) Translated(dx, dy int) Region {
	if len(r.rects) == 0 {
		return Region{}
	}
	d := image.Pt(dx, dy)
	out := Region{rects: make([]image.Rectangle, len(r.rects))}
	for i, rc := range r.rects {
		out.rects[i] = rc.Add(d)
	}
	return out
}

// Scaled returns the region with every coordinate multiplied by f.
//
// Rectangles are expanded outward to whole pixels so the scaled region
// always covers the scaled area.
func (r Region) Scaled(f float64) Region {
	if f == 1 {
		return r.Clone()
	}
	var out Region
	for _, rc := range r.rects {
		out.Add(ScaleRect(rc, f))
	}
	return out
}

// Rects returns the disjoint rectangles making up the region.
// The returned slice must not be modified.
func (r Region) Rects() []image.Rectangle {
	return r.rects
}

// Len returns the number of rectangles in the region.
func (r Region) Len() int {
	return len(r.rects)
}

// IsEmpty reports whether the region covers no pixels.
func (r Region) IsEmpty() bool {
	return len(r.rects) == 0
}

// Bounds returns the smallest rectangle containing the region.
func (r Region) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, rc := range r.rects {
		b = b.Union(rc)
	}
	return b
}

// Area returns the number of pixels covered by the region.
func (r Region) Area() int {
	n := 0
	for _, rc := range r.rects {
		n += rc.Dx() * rc.Dy()
	}
	return n
}

// Contains reports whether p lies inside the region.
func (r Region) Contains(p image.Point) bool {
	for _, rc := range r.rects {
		if p.In(rc) {
			return true
		}
	}
	return false
}

// Clear empties the region, keeping its storage.
func (r *Region) Clear() {
	r.rects = r.rects[:0]
}

// Clone returns an independent copy of the region.
func (r Region) Clone() Region {
	if len(r.rects) == 0 {
		return Region{}
	}
	return Region{rects: append([]image.Rectangle(nil), r.rects...)}
}

// ScaleRect multiplies rc by f, rounding outward to whole pixels.
func ScaleRect(rc image.Rectangle, f float64) image.Rectangle {
	if f == 1 {
		return rc
	}
	return image.Rect(
		floor(float64(rc.Min.X)*f),
		floor(float64(rc.Min.Y)*f),
		ceil(float64(rc.Max.X)*f),
		ceil(float64(rc.Max.Y)*f),
	)
}

// subtractRect returns a minus b as up to four disjoint rectangles.
func subtractRect(a, b image.Rectangle) []image.Rectangle {
	in := a.Intersect(b)
	if in.Empty() {
		return []image.Rectangle{a}
	}
	out := make([]image.Rectangle, 0, 4)
	if a.Min.Y < in.Min.Y {
		out = append(out, image.Rect(a.Min.X, a.Min.Y, a.Max.X, in.Min.Y))
	}
	if in.Max.Y < a.Max.Y {
		out = append(out, image.Rect(a.Min.X, in.Max.Y, a.Max.X, a.Max.Y))
	}
	if a.Min.X < in.Min.X {
		out = append(out, image.Rect(a.Min.X, in.Min.Y, in.Min.X, in.Max.Y))
	}
	if in.Max.X < a.Max.X {
		out = append(out, image.Rect(in.Max.X, in.Min.Y, a.Max.X, in.Max.Y))
	}
	return out
}

func floor(v float64) int {
	i := int(v)
	if float64(i) > v {
		i--
	}
	return i
}

func ceil(v float64) int {
	i := int(v)
	if float64(i) < v {
		i++
	}
	return i
}
